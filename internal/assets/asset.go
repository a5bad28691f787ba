// Package assets collects the stylesheets and scripts of the components
// a render pass invoked. Components declare their files by implementing
// Provider; the Handler resolves those paths against its directories,
// drops the ones that do not exist and classifies the rest by extension.
package assets

import (
	"fmt"
	"html/template"
	"path"
	"strings"

	"github.com/a-h/templ"
	"github.com/spf13/afero"

	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// Provider is implemented by components that ship asset files.
type Provider interface {
	Assets() []string
}

// Kind classifies an asset by how it is included in a page.
type Kind int

const (
	KindStyle Kind = iota
	KindScript
	KindFile
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindStyle:
		return "style"
	case KindScript:
		return "script"
	default:
		return "file"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// KindOf classifies path by its extension.
func KindOf(p string) Kind {
	switch strings.ToLower(path.Ext(p)) {
	case ".css":
		return KindStyle
	case ".js", ".mjs":
		return KindScript
	default:
		return KindFile
	}
}

// Asset is one resolved file of an invoked component.
type Asset struct {
	Kind      Kind   `json:"kind" yaml:"kind"`
	Path      string `json:"path" yaml:"path"`
	File      string `json:"file" yaml:"file"`
	URL       string `json:"url" yaml:"url"`
	Class     string `json:"class" yaml:"class"`
	Component string `json:"component" yaml:"component"`

	fs afero.Fs
}

// Content reads the asset file.
func (a Asset) Content() ([]byte, error) {
	if a.fs == nil {
		return nil, uierrors.NewAssetError(uierrors.CodeAssetUnresolvable, "asset has no filesystem", nil).
			WithComponent(a.Component)
	}
	data, err := afero.ReadFile(a.fs, a.File)
	if err != nil {
		return nil, uierrors.NewAssetError(uierrors.CodeAssetUnresolvable,
			fmt.Sprintf("cannot read %s", a.File), err).WithComponent(a.Component)
	}
	return data, nil
}

// HTML renders the tag including the asset. Inline styles and scripts
// embed the file content; otherwise they reference URL. Other files
// become prefetch hints.
func (a Asset) HTML(inline bool) (template.HTML, error) {
	component := templ.EscapeString(a.Component)
	url := templ.EscapeString(a.URL)

	if inline && a.Kind != KindFile {
		data, err := a.Content()
		if err != nil {
			return "", err
		}
		switch a.Kind {
		case KindStyle:
			body := strings.ReplaceAll(string(data), "</style", `<\/style`)
			return template.HTML(fmt.Sprintf(`<style data-component="%s">%s</style>`, component, body)), nil
		default:
			body := strings.ReplaceAll(string(data), "</script", `<\/script`)
			return template.HTML(fmt.Sprintf(`<script data-component="%s">%s</script>`, component, body)), nil
		}
	}

	switch a.Kind {
	case KindStyle:
		return template.HTML(fmt.Sprintf(`<link rel="stylesheet" href="%s" data-component="%s">`, url, component)), nil
	case KindScript:
		return template.HTML(fmt.Sprintf(`<script src="%s" data-component="%s" defer></script>`, url, component)), nil
	default:
		return template.HTML(fmt.Sprintf(`<link rel="prefetch" href="%s" data-component="%s">`, url, component)), nil
	}
}

// Render renders assets as one block: styles first, then scripts, then
// other files, each group in the given order.
func Render(assets []Asset, inline bool) (template.HTML, error) {
	var b strings.Builder
	for _, kind := range []Kind{KindStyle, KindScript, KindFile} {
		for _, a := range assets {
			if a.Kind != kind {
				continue
			}
			tag, err := a.HTML(inline)
			if err != nil {
				return "", err
			}
			b.WriteString(string(tag))
			b.WriteByte('\n')
		}
	}
	return template.HTML(b.String()), nil
}

// Filter returns the assets of kind.
func Filter(assets []Asset, kind Kind) []Asset {
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}
