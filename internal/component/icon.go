package component

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/uikit/internal/compiler"
	"github.com/conneroisu/uikit/internal/element"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/runtime"
)

// Icon renders an icon of its pack, selected by the get argument:
//
//	<ui:icon get="warning" label>
//
// A bare label attribute derives an accessible name from the icon name;
// without one the icon is hidden from assistive technology. The as
// argument wraps the svg in another element, e.g. as="i".
type Icon struct {
	Pack *IconPack
}

func (i Icon) pack() *IconPack {
	if i.Pack == nil {
		return DefaultIconPack()
	}
	return i.Pack
}

// CompileNode rejects icons without a name and warns about names the
// pack does not define.
func (i Icon) CompileNode(nc *compiler.NodeCompiler, sk *runtime.Skeleton) error {
	if _, bound := sk.Variables["get"]; bound {
		return nil
	}
	name := sk.Attributes.Get("get")
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("icon requires a get attribute")
	}
	if !i.pack().Has(name) {
		msg := fmt.Sprintf("unknown icon %q, rendering the fallback", name)
		if hint := uierrors.DidYouMean(name, i.pack().Names()); hint != "" {
			msg += "; " + hint
		}
		nc.Warn(msg)
	}
	return nil
}

func (i Icon) Render(_ context.Context, args runtime.Arguments) (templ.Component, error) {
	name := args.String("get", "")
	svg, ok := i.pack().Get(name)
	if !ok {
		return nil, uierrors.NewRenderError(uierrors.CodeInvalidArguments,
			fmt.Sprintf("icon %q not found", name), nil).WithComponent("Icon")
	}

	attrs := args.HTMLAttributes("get", "as", "label")
	if args.Attributes.Has("label") || args.Variables["label"] != nil {
		label := args.String("label", "")
		if label == "" {
			label = cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
		}
		svg.Attr("role", "img").Attr("aria-label", label)
	} else {
		svg.Attr("aria-hidden", "true")
	}

	if as := args.String("as", ""); as != "" {
		if element.Slug(as) != strings.ToLower(as) {
			return nil, uierrors.NewRenderError(uierrors.CodeInvalidArguments,
				fmt.Sprintf("cannot wrap icon in <%s>", as), nil).WithComponent("Icon")
		}
		return element.New(as).With(attrs).Child(svg).Component(), nil
	}
	return svg.With(attrs).Component(), nil
}
