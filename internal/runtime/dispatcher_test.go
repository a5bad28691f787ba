package runtime

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/uikit/internal/element"
	"github.com/conneroisu/uikit/internal/fragcache"
	"github.com/conneroisu/uikit/internal/logging"
	"github.com/conneroisu/uikit/internal/registry"
)

// silent is registered but has no render entry point.
type silent struct{}

// echo renders its title variable and content inside a div.
type echo struct {
	renders *int32
}

func (e echo) Render(_ context.Context, args Arguments) (templ.Component, error) {
	if e.renders != nil {
		atomic.AddInt32(e.renders, 1)
	}
	div := element.New("div").With(args.Attributes)
	if title := args.String("title", ""); title != "" {
		div.Child(element.New("strong").Text(title))
	}
	div.Append(args.Content...)
	return div.Component(), nil
}

// failing always returns an error.
type failing struct{}

func (failing) Render(context.Context, Arguments) (templ.Component, error) {
	return nil, errors.New("boom")
}

// upper resolves its own arguments by upper-casing the title.
type upper struct {
	resolves *int32
}

func (u upper) ResolveArguments(args Arguments) (Arguments, error) {
	atomic.AddInt32(u.resolves, 1)
	if args.Variables == nil {
		args.Variables = map[string]interface{}{}
	}
	args.Variables["title"] = strings.ToUpper(args.String("title", ""))
	return args, nil
}

func (u upper) Render(_ context.Context, args Arguments) (templ.Component, error) {
	return element.New("h1").Text(args.String("title", "")).Component(), nil
}

// parent renders echo as a nested component.
type parent struct{}

func (parent) Render(ctx context.Context, args Arguments) (templ.Component, error) {
	return Nested(ctx, echo{}, args)
}

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *registry.ComponentRegistry, *logging.Recorder) {
	t.Helper()
	reg := registry.NewComponentRegistry()
	rec := logging.NewRecorder()
	opts = append([]Option{WithLogger(rec), WithArgumentCache(NewArgumentCache())}, opts...)
	return New(reg, opts...), reg, rec
}

func TestMissingRenderLogsExactlyOneError(t *testing.T) {
	d, reg, rec := newTestDispatcher(t)
	entry := reg.MustRegister(silent{}, "ui:silent")

	out := d.Render(entry.Class, `{"attributes":{"a":"b"}}`, "auto")

	assert.Equal(t, template.HTML(""), out)
	require.Len(t, rec.Entries(), 1)
	assert.Equal(t, logging.LevelError, rec.Entries()[0].Level)
	assert.False(t, d.Invocations().Has(entry.Class))
}

func TestUnknownClassLogsNotice(t *testing.T) {
	d, _, rec := newTestDispatcher(t)

	out, ok := d.Invoke(context.Background(), "example.com/nope.Card", Arguments{}, Auto)

	assert.False(t, ok)
	assert.Empty(t, out)
	assert.Equal(t, 1, rec.Count(logging.LevelNotice))
	assert.Equal(t, 0, rec.Count(logging.LevelError))
}

func TestInvocationRegistrationIsIdempotent(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	entry := reg.MustRegister(echo{}, "ui:echo")

	d.Render(entry.Class, `{}`, "auto")
	d.Render(entry.Class, `{}`, "auto")
	d.Mark(entry.Class)

	assert.Equal(t, 1, d.Invocations().Len())
	assert.Equal(t, map[string]string{entry.Class: "echo"}, d.Invocations().Names())

	inv := NewInvocations()
	assert.True(t, inv.Register("a.B"))
	assert.False(t, inv.Register("a.B"))
	assert.Equal(t, []string{"a.B"}, inv.Classes())
}

func TestEachDispatcherStartsEmpty(t *testing.T) {
	reg := registry.NewComponentRegistry()
	entry := reg.MustRegister(echo{}, "ui:echo")

	first := New(reg)
	first.Mark(entry.Class)
	second := New(reg)

	assert.Equal(t, 1, first.Invocations().Len())
	assert.Equal(t, 0, second.Invocations().Len())
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestRenderBindsValues(t *testing.T) {
	d, reg, rec := newTestDispatcher(t)
	entry := reg.MustRegister(echo{}, "ui:echo")

	skeleton := Skeleton{
		Attributes: element.Attributes{"class": "box"},
		Variables:  map[string]int{"title": 0},
		Content:    element.Content{element.Text("Hi "), element.Expr(1)},
	}
	encoded, err := skeleton.Encode()
	require.NoError(t, err)

	out := d.Render(entry.Class, encoded, "auto", "Title", "<you>")
	assert.Equal(t, template.HTML(`<div class="box"><strong>Title</strong>Hi &lt;you&gt;</div>`), out)
	assert.Empty(t, rec.Entries())
}

func TestRenderWithMissingValueLogsError(t *testing.T) {
	d, reg, rec := newTestDispatcher(t)
	entry := reg.MustRegister(echo{}, "ui:echo")

	out := d.Render(entry.Class, `{"variables":{"title":3}}`, "auto", "only one")

	assert.Empty(t, out)
	assert.Equal(t, 1, rec.Count(logging.LevelError))
}

func TestRenderWithBadPolicyOrSkeleton(t *testing.T) {
	d, reg, rec := newTestDispatcher(t)
	entry := reg.MustRegister(echo{}, "ui:echo")

	assert.Empty(t, d.Render(entry.Class, `{}`, "sometimes"))
	assert.Empty(t, d.Render(entry.Class, `{not json`, "auto"))
	assert.Equal(t, 2, rec.Count(logging.LevelError))
}

func TestRenderFailureLogsError(t *testing.T) {
	d, reg, rec := newTestDispatcher(t)
	entry := reg.MustRegister(failing{}, "ui:failing")

	out, ok := d.Invoke(context.Background(), entry.Class, Arguments{}, Auto)

	assert.False(t, ok)
	assert.Empty(t, out)
	assert.Equal(t, 1, rec.Count(logging.LevelError))
	// the invocation still counts for asset collection
	assert.True(t, d.Invocations().Has(entry.Class))
}

func TestArgumentCallbackIsCached(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	entry := reg.MustRegister(echo{}, "ui:echo")

	var calls int32
	d.AddArgumentCallback(entry.Class, func(args Arguments) (Arguments, error) {
		atomic.AddInt32(&calls, 1)
		args.Attributes = args.Attributes.Clone().Set("class", "resolved")
		return args, nil
	})

	args := Arguments{Attributes: element.Attributes{"class": "box"}}
	first, ok := d.Invoke(context.Background(), entry.Class, args, Auto)
	require.True(t, ok)
	second, ok := d.Invoke(context.Background(), entry.Class, args, Auto)
	require.True(t, ok)

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, first, second)
	assert.Contains(t, first, `class="box resolved"`)

	_, _ = d.Invoke(context.Background(), entry.Class, Arguments{Attributes: element.Attributes{"class": "other"}}, Auto)
	assert.Equal(t, int32(2), calls)
}

func TestArgumentResolverIsCachedAcrossDispatchers(t *testing.T) {
	reg := registry.NewComponentRegistry()
	var resolves int32
	entry := reg.MustRegister(upper{resolves: &resolves}, "ui:upper")
	cache := NewArgumentCache()

	for i := 0; i < 3; i++ {
		d := New(reg, WithArgumentCache(cache))
		out := d.Render(entry.Class, `{"variables":{"title":0}}`, "auto", "hello")
		assert.Equal(t, template.HTML("<h1>HELLO</h1>"), out)
	}

	assert.Equal(t, int32(1), resolves)
	assert.Equal(t, 1, cache.Len())
}

func TestArgumentCacheReturnsCopies(t *testing.T) {
	cache := NewArgumentCache()
	fn := func(args Arguments) (Arguments, error) {
		args.Variables = map[string]interface{}{"n": 1}
		return args, nil
	}

	first, err := cache.Resolve("x.Y", Arguments{}, fn)
	require.NoError(t, err)
	first.Variables["n"] = 99

	second, err := cache.Resolve("x.Y", Arguments{}, fn)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Variables["n"])
}

func TestDispatcherCallbackDoesNotShareResolverResults(t *testing.T) {
	reg := registry.NewComponentRegistry()
	var resolves int32
	entry := reg.MustRegister(upper{resolves: &resolves}, "ui:upper")
	cache := NewArgumentCache()

	own := New(reg, WithArgumentCache(cache))
	assert.Equal(t, template.HTML("<h1>HELLO</h1>"), own.Render(entry.Class, `{"variables":{"title":0}}`, "auto", "hello"))

	override := func(suffix string) ArgumentCallback {
		return func(args Arguments) (Arguments, error) {
			args.Variables = map[string]interface{}{"title": args.String("title", "") + suffix}
			return args, nil
		}
	}
	first := New(reg, WithArgumentCache(cache))
	first.AddArgumentCallback(entry.Class, override("!"))
	assert.Equal(t, template.HTML("<h1>hello!</h1>"), first.Render(entry.Class, `{"variables":{"title":0}}`, "auto", "hello"))

	second := New(reg, WithArgumentCache(cache))
	second.AddArgumentCallback(entry.Class, override("?"))
	assert.Equal(t, template.HTML("<h1>hello?</h1>"), second.Render(entry.Class, `{"variables":{"title":0}}`, "auto", "hello"))

	assert.Equal(t, int32(1), resolves)
	assert.Equal(t, 3, cache.Len())
}

func TestFragmentCacheKeepsValueTypesApart(t *testing.T) {
	var renders int32
	cache := fragcache.NewMemory(1 << 20)
	reg := registry.NewComponentRegistry()
	entry := reg.MustRegister(echo{renders: &renders}, "ui:echo")
	payload := "<img src=x onerror=alert(1)>"

	trusted := New(reg, WithCache(cache), WithArgumentCache(NewArgumentCache()))
	out, ok := trusted.Invoke(context.Background(), entry.Class,
		Arguments{Content: element.Content{element.Value(template.HTML(payload))}}, Auto)
	require.True(t, ok)
	assert.Equal(t, "<div>"+payload+"</div>", out)

	untrusted := New(reg, WithCache(cache), WithArgumentCache(NewArgumentCache()))
	out, ok = untrusted.Invoke(context.Background(), entry.Class,
		Arguments{Content: element.Content{element.Value(payload)}}, Auto)
	require.True(t, ok)
	assert.Equal(t, "<div>&lt;img src=x onerror=alert(1)&gt;</div>", out)
	assert.Equal(t, int32(2), renders)
}

func TestCacheKey(t *testing.T) {
	args := Arguments{Variables: map[string]interface{}{"title": "x"}}

	a, err := cacheKey("acme/Card", args)
	require.NoError(t, err)
	b, err := cacheKey("acme.card", args)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "classes that normalize alike keep separate keys")
	assert.True(t, strings.HasPrefix(a, "acme.card."))
	require.NoError(t, fragcache.ValidateKey(a))

	again, err := cacheKey("acme/Card", Arguments{Variables: map[string]interface{}{"title": "x"}})
	require.NoError(t, err)
	assert.Equal(t, a, again)

	html, err := cacheKey("acme/Card", Arguments{Variables: map[string]interface{}{"title": template.HTML("x")}})
	require.NoError(t, err)
	assert.NotEqual(t, a, html)
}

func TestFragmentCache(t *testing.T) {
	var renders int32
	cache := fragcache.NewMemory(1 << 20)
	d, reg, rec := newTestDispatcher(t, WithCache(cache), WithTTL(time.Hour))
	entry := reg.MustRegister(echo{renders: &renders}, "ui:echo")
	args := Arguments{Content: element.Content{element.Text("cached")}}

	for i := 0; i < 3; i++ {
		out, ok := d.Invoke(context.Background(), entry.Class, args, Auto)
		require.True(t, ok)
		assert.Equal(t, "<div>cached</div>", out)
	}
	assert.Equal(t, int32(1), renders)

	for i := 0; i < 2; i++ {
		_, ok := d.Invoke(context.Background(), entry.Class, args, Ephemeral)
		require.True(t, ok)
	}
	assert.Equal(t, int32(3), renders)

	_, ok := d.Invoke(context.Background(), entry.Class, args, Policy{Mode: PolicyDuration, TTL: time.Minute})
	require.True(t, ok)
	assert.Empty(t, rec.Entries())
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestFragmentCacheMinifies(t *testing.T) {
	d, reg, _ := newTestDispatcher(t, WithCache(fragcache.NewMemory(1<<20)), WithMinify(true))
	entry := reg.MustRegister(echo{}, "ui:echo")

	out, ok := d.Invoke(context.Background(), entry.Class,
		Arguments{Content: element.Content{element.Raw("<p>\n   spaced     out \n</p>")}}, Auto)

	require.True(t, ok)
	assert.NotContains(t, out, "   ")
	assert.Contains(t, out, "spaced out")
}

func TestUnhashableArgumentsLogCritical(t *testing.T) {
	d, reg, rec := newTestDispatcher(t, WithCache(fragcache.NewMemory(1<<20)))
	entry := reg.MustRegister(echo{}, "ui:echo")

	out := d.Render(entry.Class, `{"variables":{"title":0}}`, "auto", func() {})

	assert.Empty(t, out)
	assert.Equal(t, 1, rec.Count(logging.LevelCritical))
}

func TestNestedRegistersInvocation(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	parentEntry := reg.MustRegister(parent{}, "ui:parent")
	reg.MustRegister(echo{}, "ui:echo")

	out, ok := d.Invoke(context.Background(), parentEntry.Class,
		Arguments{Content: element.Content{element.Text("inner")}}, Auto)

	require.True(t, ok)
	assert.Equal(t, "<div>inner</div>", out)
	assert.True(t, d.Invocations().Has(registry.ClassName(echo{})))
	assert.Equal(t, 2, d.Invocations().Len())
}

func TestFuncMapInTemplate(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	entry := reg.MustRegister(echo{}, "ui:echo")

	src := "<main>{{render \"" + entry.Class + "\" `{\"content\":[{\"expr\":0}]}` \"auto\" .Name}}{{mark \"x.Marked\"}}</main>"
	tmpl, err := template.New("page").Funcs(d.FuncMap()).Parse(src)
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, tmpl.Execute(&b, map[string]string{"Name": "<Ada>"}))

	assert.Equal(t, "<main><div>&lt;Ada&gt;</div></main>", b.String())
	assert.Equal(t, []string{entry.Class, "x.Marked"}, d.Invocations().Classes())
}

func TestRegisterInvocationWithoutRegistry(t *testing.T) {
	assert.False(t, RegisterInvocation(context.Background(), "a.B"))

	inv := NewInvocations()
	ctx := WithInvocations(context.Background(), inv)
	assert.True(t, RegisterInvocation(ctx, "a.B"))
	assert.False(t, RegisterInvocation(ctx, "a.B"))
}
