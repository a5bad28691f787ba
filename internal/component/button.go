package component

import (
	"context"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/uikit/internal/element"
	"github.com/conneroisu/uikit/internal/runtime"
)

// Button renders <button> elements with the button class and an explicit
// type, so a button never submits a form by accident.
type Button struct{}

func (Button) Render(_ context.Context, args runtime.Arguments) (templ.Component, error) {
	btn := element.New("button").
		Attr("class", "button").
		With(args.HTMLAttributes("variant"))
	btn.Attributes.Default("type", "button")

	if variant := strings.TrimSpace(args.String("variant", "")); variant != "" {
		btn.Attr("class", "button--"+element.Slug(variant))
	}

	return btn.Append(args.Content...).Component(), nil
}
