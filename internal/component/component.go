// Package component holds the built-in UI components. Each one renders
// from runtime.Arguments to a templ.Component; some reshape their
// arguments at compile time, and some ship stylesheets and scripts.
package component

import (
	"bytes"
	"context"
	"embed"
	"io/fs"
	"strings"

	"github.com/a-h/templ"
	"github.com/spf13/afero"

	"github.com/conneroisu/uikit/internal/element"
	"github.com/conneroisu/uikit/internal/registry"
)

//go:embed assets
var embedded embed.FS

// AssetFS exposes the bundled component assets, rooted at the asset
// directory so declared paths like "notification.css" resolve directly.
func AssetFS() afero.Fs {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		panic(err)
	}
	return afero.NewReadOnlyFs(afero.FromIOFS{FS: sub})
}

// RegisterDefaults registers every built-in component. Namespaced tags
// use namespace, e.g. "ui" gives <ui:notification>.
func RegisterDefaults(reg *registry.ComponentRegistry, namespace string) ([]*registry.Entry, error) {
	ns := strings.TrimSuffix(strings.ToLower(namespace), ":") + ":"

	defaults := []struct {
		value interface{}
		tags  []string
	}{
		{Button{}, []string{"button", ns + "button"}},
		{Heading{}, []string{"h1", "h2", "h3", "h4", "h5", "h6", ns + "heading"}},
		{Notification{}, []string{ns + "notification", ns + "toast"}},
		{Breadcrumbs{}, []string{ns + "breadcrumbs"}},
		{Icon{}, []string{ns + "icon"}},
		{Code{}, []string{"code", ns + "code"}},
	}

	entries := make([]*registry.Entry, 0, len(defaults))
	for _, d := range defaults {
		entry, err := reg.Register(d.value, d.tags...)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// renderString renders c to a string.
func renderString(ctx context.Context, c templ.Component) (string, error) {
	if c == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// rawText concatenates the text of content without collapsing whitespace.
func rawText(content element.Content) string {
	var b strings.Builder
	for _, n := range content {
		switch {
		case n.Element != nil:
			b.WriteString(rawText(n.Element.Content))
		case n.IsExpression():
			if n.Value != nil {
				b.WriteString(element.Content{n}.Text())
			}
		default:
			b.WriteString(n.Text)
		}
	}
	return b.String()
}
