package component

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/uikit/internal/element"
	"github.com/conneroisu/uikit/internal/runtime"
)

func render(t *testing.T, r runtime.Renderer, args runtime.Arguments) string {
	t.Helper()
	ctx := context.Background()
	c, err := r.Render(ctx, args)
	require.NoError(t, err)
	out, err := renderString(ctx, c)
	require.NoError(t, err)
	return out
}

func attrs(kv ...string) element.Attributes {
	out := element.Attributes{}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func text(s string) element.Node { return element.Text(s) }

func el(tag, body string) element.Node {
	return element.Node{Element: element.New(tag).Text(body)}
}

func elAttr(tag, body string, kv ...string) element.Node {
	return element.Node{Element: element.New(tag).With(attrs(kv...)).Text(body)}
}

func contentOf(nodes ...element.Node) element.Content { return element.Content(nodes) }

