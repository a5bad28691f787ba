package component

import (
	"context"
	"fmt"
	"strconv"

	"github.com/a-h/templ"

	"github.com/conneroisu/uikit/internal/element"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/runtime"
)

// Crumb is one step of a breadcrumb trail. The last crumb is the
// current page; crumbs without a URL render as plain text.
type Crumb struct {
	Label string `json:"label" yaml:"label"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Breadcrumbs renders a schema.org BreadcrumbList. The trail comes from
// the items argument or, failing that, from the child elements:
//
//	<ui:breadcrumbs><a href="/">Home</a><span>Docs</span></ui:breadcrumbs>
//	<ui:breadcrumbs items="{{.Trail}}"></ui:breadcrumbs>
type Breadcrumbs struct{}

// Assets returns the stylesheet bundled with the component.
func (Breadcrumbs) Assets() []string {
	return []string{"breadcrumbs.css"}
}

func (Breadcrumbs) Render(_ context.Context, args runtime.Arguments) (templ.Component, error) {
	crumbs, err := trail(args)
	if err != nil {
		return nil, err
	}
	if len(crumbs) == 0 {
		return nil, nil
	}

	list := element.New("ol").
		Attr("class", "breadcrumbs").
		Attr("vocab", "https://schema.org/").
		Attr("typeof", "BreadcrumbList")

	for i, crumb := range crumbs {
		name := element.New("span").Attr("property", "name").Text(crumb.Label)
		item := element.New("li").
			Attr("property", "itemListElement").
			Attr("typeof", "ListItem")
		if i == len(crumbs)-1 {
			item.Attr("aria-current", "page")
		}
		if crumb.URL != "" {
			item.Child(element.New("a").
				Attr("href", crumb.URL).
				Attr("property", "item").
				Attr("typeof", "WebPage").
				Child(name))
		} else {
			item.Child(name)
		}
		item.Child(element.New("meta").Attr("property", "position").Attr("content", strconv.Itoa(i+1)))
		list.Child(item)
	}

	nav := element.New("nav").
		Attr("aria-label", "Breadcrumb").
		With(args.HTMLAttributes("items")).
		Child(list)
	return nav.Component(), nil
}

func trail(args runtime.Arguments) ([]Crumb, error) {
	if items, ok := args.Variables["items"]; ok && items != nil {
		return crumbsOf(items)
	}

	var crumbs []Crumb
	for _, el := range args.Content.Elements() {
		label := el.Content.Text()
		if label == "" {
			continue
		}
		crumbs = append(crumbs, Crumb{Label: label, URL: el.Attributes.Get("href")})
	}
	return crumbs, nil
}

func crumbsOf(items interface{}) ([]Crumb, error) {
	switch items := items.(type) {
	case []Crumb:
		return items, nil
	case []map[string]string:
		out := make([]Crumb, 0, len(items))
		for _, m := range items {
			out = append(out, Crumb{Label: m["label"], URL: m["url"]})
		}
		return out, nil
	case []interface{}:
		out := make([]Crumb, 0, len(items))
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, invalidItems(item)
			}
			crumb := Crumb{}
			if v, ok := m["label"]; ok {
				crumb.Label = fmt.Sprint(v)
			}
			if v, ok := m["url"]; ok && v != nil {
				crumb.URL = fmt.Sprint(v)
			}
			out = append(out, crumb)
		}
		return out, nil
	default:
		return nil, invalidItems(items)
	}
}

func invalidItems(v interface{}) error {
	return uierrors.NewRenderError(uierrors.CodeInvalidArguments,
		fmt.Sprintf("breadcrumb items of type %T are not supported", v), nil).WithComponent("Breadcrumbs")
}
