package component

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/uikit/internal/element"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/runtime"
)

var notificationTypes = map[string]string{
	"info":    "info",
	"success": "success",
	"warning": "warning",
	"danger":  "danger",
	"error":   "danger",
	"notice":  "notice",
}

// Notification renders a status message. Invoked as a toast it becomes
// a transient, dismissible popup; the bundled script stacks toasts and
// removes them after their timeout.
//
//	<ui:notification type="warning" title="Heads up">Details</ui:notification>
//	<ui:toast type="success" timeout="3500">Saved.</ui:toast>
type Notification struct{}

// Assets returns the stylesheet and script bundled with the component.
func (Notification) Assets() []string {
	return []string{"notification.css", "notification.js"}
}

func (Notification) Render(ctx context.Context, args runtime.Arguments) (templ.Component, error) {
	raw := strings.ToLower(args.String("type", "notice"))
	kind, ok := notificationTypes[raw]
	if !ok {
		return nil, uierrors.NewRenderError(uierrors.CodeInvalidArguments,
			fmt.Sprintf("unknown notification type %q", raw), nil).WithComponent("Notification")
	}
	toast := strings.HasSuffix(strings.ToLower(args.Tag), ":toast")

	root := element.New("div").
		Attr("class", "notification "+kind).
		With(args.HTMLAttributes("type", "title", "timeout", "dismissible"))
	if toast {
		root.Attr("class", "toast").Attr("role", "status").Attr("aria-live", "polite")
	} else {
		root.Attr("role", "alert")
	}

	if timeout := args.String("timeout", ""); timeout != "" {
		ms, err := strconv.Atoi(timeout)
		if err != nil || ms < 0 {
			return nil, uierrors.NewRenderError(uierrors.CodeInvalidArguments,
				fmt.Sprintf("timeout %q is not a number of milliseconds", timeout), err).WithComponent("Notification")
		}
		root.Attr("data-timeout", strconv.Itoa(ms))
	}

	if toast || args.Bool("dismissible") {
		root.Child(element.New("button").
			Attr("class", "close").
			Attr("type", "button").
			Attr("aria-label", "Close").
			Text("×"))
	}

	icon, err := runtime.Nested(ctx, Icon{}, runtime.Arguments{
		Attributes: element.Attributes{"get": kind},
	})
	if err != nil {
		return nil, err
	}
	iconHTML, err := renderString(ctx, icon)
	if err != nil {
		return nil, err
	}

	label := cases.Title(language.English).String(kind)
	status := element.New("output").
		Raw(iconHTML).
		Child(element.New("span").Attr("class", "status").Text(label))
	if title := args.String("title", ""); title != "" {
		status.Child(element.New("span").Attr("class", "title").Text(title))
	}
	root.Child(status)

	if !args.Content.IsEmpty() {
		root.Child(element.New("section").Attr("class", "description").Append(args.Content...))
	}
	return root.Component(), nil
}
