package component

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/uikit/internal/compiler"
	"github.com/conneroisu/uikit/internal/element"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/runtime"
)

// Heading renders h1 to h6. Child <small> and <p> elements become the
// subheading, and the heading gets an id slugged from its text unless
// one is given. With the hgroup attribute the pair is wrapped in an
// <hgroup>.
type Heading struct{}

// CompileNode tags subheadings and derives the id of static headings at
// compile time, so the slug is computed once per template. A static
// level on the namespaced tag is checked here; h1 to h6 take the level
// from the tag.
func (Heading) CompileNode(nc *compiler.NodeCompiler, sk *runtime.Skeleton) error {
	if !nc.IsElement() {
		if level, ok := nc.Properties("level")["level"]; ok {
			if _, err := headingLevel(runtime.Arguments{Attributes: element.Attributes{"level": level}}); err != nil {
				return err
			}
		}
	}

	for _, n := range sk.Content {
		if n.Element != nil && isSubheading(n.Element) {
			n.Element.Attr("class", "subheading")
		}
	}

	if _, bound := sk.Variables["id"]; bound || sk.Attributes.Has("id") || sk.Content.HasExpression() {
		return nil
	}
	if id := element.Slug(sk.Content.Text()); id != "" {
		if sk.Attributes == nil {
			sk.Attributes = element.Attributes{}
		}
		sk.Attributes.Set("id", id)
	}
	return nil
}

func (Heading) Render(_ context.Context, args runtime.Arguments) (templ.Component, error) {
	level, err := headingLevel(args)
	if err != nil {
		return nil, err
	}

	var heading, sub element.Content
	subFirst := false
	for _, n := range args.Content {
		if n.Element != nil && isSubheading(n.Element) {
			if len(heading) == 0 || heading.IsEmpty() {
				subFirst = true
			}
			n.Element.Attr("class", "subheading")
			sub = append(sub, n)
			continue
		}
		heading = append(heading, n)
	}

	attrs := args.HTMLAttributes("level", "hgroup")
	if !attrs.Has("id") {
		if id := element.Slug(args.Content.Text()); id != "" {
			attrs.Set("id", id)
		}
	}

	var out *element.Element
	if args.Bool("hgroup") {
		out = element.New("hgroup").With(attrs)
		inner := element.New(level).Append(heading...)
		out = appendOrdered(out, subFirst, sub, element.Content{{Element: inner}})
	} else {
		out = element.New(level).With(attrs)
		inner := element.New("span").Append(heading...)
		out = appendOrdered(out, subFirst, sub, element.Content{{Element: inner}})
	}
	return out.Component(), nil
}

func appendOrdered(el *element.Element, subFirst bool, sub, main element.Content) *element.Element {
	if subFirst {
		return el.Append(sub...).Append(main...)
	}
	return el.Append(main...).Append(sub...)
}

func isSubheading(el *element.Element) bool {
	return el.Tag == "small" || el.Tag == "p"
}

func headingLevel(args runtime.Arguments) (string, error) {
	tag := strings.ToLower(args.Tag)
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return tag, nil
	}
	raw := args.String("level", "1")
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(raw), "h"))
	if err != nil || n < 1 || n > 6 {
		return "", uierrors.NewRenderError(uierrors.CodeInvalidArguments,
			fmt.Sprintf("heading level %q is not between 1 and 6", raw), err).WithComponent("Heading")
	}
	return "h" + strconv.Itoa(n), nil
}
