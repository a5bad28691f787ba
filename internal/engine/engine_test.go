package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/uikit/internal/element"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/fragcache"
	"github.com/conneroisu/uikit/internal/logging"
	"github.com/conneroisu/uikit/internal/registry"
	"github.com/conneroisu/uikit/internal/runtime"
	"github.com/conneroisu/uikit/internal/watcher"
)

type greeting struct {
	renders *int32
}

func (g greeting) Assets() []string { return []string{"greeting.css"} }

func (g greeting) Render(_ context.Context, args runtime.Arguments) (templ.Component, error) {
	if g.renders != nil {
		atomic.AddInt32(g.renders, 1)
	}
	return element.New("p").
		Attr("class", "greeting").
		Text("Hello " + args.String("name", "world")).
		Component(), nil
}

type other struct{}

func (other) Render(context.Context, runtime.Arguments) (templ.Component, error) {
	return element.New("hr").Component(), nil
}

var greetingClass = registry.ClassName(greeting{})

type fixture struct {
	fs      afero.Fs
	reg     *registry.ComponentRegistry
	engine  *Engine
	renders *int32
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("templates/partials", 0o755))
	require.NoError(t, fs.MkdirAll("static", 0o755))
	require.NoError(t, afero.WriteFile(fs, "static/greeting.css", []byte(".greeting{}"), 0o644))

	f := &fixture{fs: fs, reg: registry.NewComponentRegistry(), renders: new(int32)}
	f.reg.MustRegister(greeting{renders: f.renders}, "ui:greeting")

	opts := Options{
		FS:        fs,
		Dir:       "templates",
		AssetDirs: []string{"static"},
		Arguments: runtime.NewArgumentCache(),
		Logger:    logging.NewRecorder(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.engine = New(f.reg, opts)
	return f
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, "templates/"+name, []byte(content), 0o644))
}

func TestRender(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "page.html", `<main><ui:greeting name="{{.Name}}"/></main>`)

	out, pass, err := f.engine.RenderString(context.Background(), "page.html", map[string]string{"Name": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, `<main><p class="greeting">Hello Ada</p></main>`, out)
	assert.NotEmpty(t, pass.ID)
	assert.Equal(t, []string{greetingClass}, pass.Classes)
	require.Len(t, pass.Assets, 1)
	assert.Equal(t, "/assets/greeting.css", pass.Assets[0].URL)
}

func TestRenderPassesAreIsolated(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "page.html", `<ui:greeting name="{{.}}"/>`)
	f.write(t, "plain.html", `<p>nothing</p>`)

	_, first, err := f.engine.RenderString(context.Background(), "page.html", "a")
	require.NoError(t, err)
	_, second, err := f.engine.RenderString(context.Background(), "plain.html", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, second.Classes)
	assert.Empty(t, second.Assets)
}

func TestStaticRenderPrerenders(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.StaticRender = true })
	f.write(t, "page.html", `<ui:greeting name="Bob"/>`)

	tmpl, err := f.engine.Load("page.html")
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.Compiled.Prerendered)
	assert.EqualValues(t, 1, atomic.LoadInt32(f.renders))

	out, pass, err := f.engine.RenderString(context.Background(), "page.html", nil)
	require.NoError(t, err)
	assert.Equal(t, `<p class="greeting">Hello Bob</p>`, out)
	assert.Equal(t, []string{greetingClass}, pass.Classes)
	assert.EqualValues(t, 1, atomic.LoadInt32(f.renders))
}

func TestFragmentCache(t *testing.T) {
	cache := fragcache.NewMemory(1 << 20)
	f := newFixture(t, func(o *Options) {
		o.Cache = cache
		o.TTL = time.Minute
	})
	f.write(t, "page.html", `<ui:greeting name="{{.}}"/>`)

	for i := 0; i < 3; i++ {
		out, _, err := f.engine.RenderString(context.Background(), "page.html", "Ada")
		require.NoError(t, err)
		assert.Equal(t, `<p class="greeting">Hello Ada</p>`, out)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(f.renders))
	assert.EqualValues(t, 2, cache.Stats().Hits)

	require.NoError(t, f.engine.HandleChanges([]watcher.ChangeEvent{{Path: "static/greeting.css"}}))
	_, _, err := f.engine.RenderString(context.Background(), "page.html", "Ada")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(f.renders))
}

func TestLoadRecompilesChangedFiles(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "page.html", `<p>one</p>`)

	first, err := f.engine.Load("page.html")
	require.NoError(t, err)
	again, err := f.engine.Load("page.html")
	require.NoError(t, err)
	assert.Same(t, first, again)

	f.write(t, "page.html", `<p>two</p>`)
	later := first.ModTime.Add(time.Second)
	require.NoError(t, f.fs.Chtimes("templates/page.html", later, later))

	out, _, err := f.engine.RenderString(context.Background(), "page.html", nil)
	require.NoError(t, err)
	assert.Equal(t, `<p>two</p>`, out)
}

func TestLoadErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "broken.html", `<p>{{.Name</p>`)
	f.write(t, "bad-action.html", `<p>{{if .X}}</p>`)

	tests := []struct {
		name string
		code string
	}{
		{"missing.html", uierrors.CodeTemplateNotFound},
		{"../secret.html", uierrors.CodeTemplateNotFound},
		{"/etc/passwd", uierrors.CodeTemplateNotFound},
		{"partials/../page.html", uierrors.CodeTemplateNotFound},
		{"", uierrors.CodeTemplateNotFound},
		{"broken.html", uierrors.CodeParseFailure},
		{"bad-action.html", uierrors.CodeParseFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Load(tt.name)
			require.Error(t, err)
			assert.True(t, uierrors.HasCode(err, tt.code), err.Error())
		})
	}
}

func TestRenderFailureWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "page.html", `<p>before</p>{{.Missing.Field}}`)

	var b strings.Builder
	_, err := f.engine.Render(context.Background(), &b, "page.html", map[string]interface{}{"Missing": 3})
	require.Error(t, err)
	assert.True(t, uierrors.HasCode(err, uierrors.CodeRenderFailure))
	assert.Empty(t, b.String())
}

func TestTemplates(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "page.html", "")
	f.write(t, "partials/nav.tmpl", "")
	f.write(t, "notes.txt", "")
	require.NoError(t, f.fs.MkdirAll("templates/.hidden", 0o755))
	f.write(t, ".hidden/x.html", "")

	names, err := f.engine.Templates()
	require.NoError(t, err)
	assert.Equal(t, []string{"page.html", "partials/nav.tmpl"}, names)
}

func TestHandleChangesInvalidatesTemplates(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "page.html", `<p>one</p>`)
	f.write(t, "partials/nav.tmpl", `<nav></nav>`)

	for _, name := range []string{"page.html", "partials/nav.tmpl"} {
		_, err := f.engine.Load(name)
		require.NoError(t, err)
	}

	require.NoError(t, f.engine.HandleChanges([]watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: "templates/partials/nav.tmpl"},
	}))
	assert.True(t, f.engine.Cached("page.html"))
	assert.False(t, f.engine.Cached("partials/nav.tmpl"))
}

func TestWatchInvalidatesOnRegistryChange(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "page.html", `<p>one</p>`)
	_, err := f.engine.Load("page.html")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.engine.Watch(ctx)

	f.reg.MustRegister(other{}, "ui:other")
	assert.Eventually(t, func() bool { return !f.engine.Cached("page.html") },
		time.Second, 10*time.Millisecond)
}

func TestDiagnosticsSurface(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "page.html", `<ui:greting/>`)

	tmpl, err := f.engine.Load("page.html")
	require.NoError(t, err)
	require.NotEmpty(t, tmpl.Compiled.Diagnostics)
	assert.Contains(t, tmpl.Compiled.Diagnostics[0].Message, "did you mean ui:greeting?")
	assert.NotEmpty(t, f.engine.Diagnostics())
}

func TestCleanName(t *testing.T) {
	for _, name := range []string{"page.html", "./page.html", "a/b/c.html"} {
		clean, err := cleanName(name)
		require.NoError(t, err, name)
		assert.False(t, strings.HasPrefix(clean, "./"))
	}
}

func TestPurgeEvery(t *testing.T) {
	cache, err := fragcache.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	f := newFixture(t, func(o *Options) {
		o.Cache = cache
		o.TTL = time.Millisecond
	})
	f.write(t, "page.html", `<ui:greeting name="{{.}}"/>`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _, err = f.engine.RenderString(ctx, "page.html", "Ada")
	require.NoError(t, err)
	n, err := cache.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	f.engine.PurgeEvery(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		n, err := cache.Count(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPurgeWithoutPurger(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Cache = fragcache.Nop{} })
	removed, err := f.engine.Purge(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCloseWithoutCache(t *testing.T) {
	f := newFixture(t, nil)
	assert.NoError(t, f.engine.Close())
}
