// Package engine ties the pieces together: it loads templates from a
// directory, compiles their component tags, parses the result with
// html/template and renders it with a fresh dispatcher per pass.
//
// Compiled templates are cached and recompiled when the file changes on
// disk, when the watcher reports it, or when the component registry
// changes. Every render returns the pass identifier, the invoked
// component classes and the assets those components declare.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/uikit/internal/assets"
	"github.com/conneroisu/uikit/internal/compiler"
	"github.com/conneroisu/uikit/internal/component"
	"github.com/conneroisu/uikit/internal/config"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/fragcache"
	"github.com/conneroisu/uikit/internal/logging"
	"github.com/conneroisu/uikit/internal/registry"
	"github.com/conneroisu/uikit/internal/runtime"
	"github.com/conneroisu/uikit/internal/watcher"
)

// Options configure an Engine.
type Options struct {
	// FS holds the templates. Defaults to the OS filesystem.
	FS afero.Fs
	// Dir is the template root inside FS.
	Dir string
	// Extensions lists the template file extensions.
	Extensions []string
	// Namespace is the component tag namespace, e.g. "ui".
	Namespace string
	// StaticRender renders invocations without dynamic arguments at compile time.
	StaticRender bool
	// Cache stores rendered fragments. Nil disables fragment caching.
	Cache fragcache.Cache
	// TTL is the fragment expiry under the auto policy.
	TTL time.Duration
	// Minify minifies fragments before caching them.
	Minify bool
	// AssetFS holds component assets. Defaults to FS.
	AssetFS afero.Fs
	// AssetDirs are searched for relative asset paths.
	AssetDirs []string
	// AssetFilter lists classes or component names whose assets are skipped.
	AssetFilter []string
	// Arguments caches argument callbacks. Defaults to the process-wide cache.
	Arguments *runtime.ArgumentCache
	Logger    logging.Logger
}

// Engine compiles and renders component templates.
type Engine struct {
	opts     Options
	registry *registry.ComponentRegistry
	compiler *compiler.Compiler
	assets   *assets.Handler
	logger   logging.Logger

	mu        sync.RWMutex
	templates map[string]*Template
	group     singleflight.Group
}

// Template is a compiled template ready to execute.
type Template struct {
	Name     string
	ModTime  time.Time
	Compiled *compiler.Result
	tmpl     *template.Template
}

// Pass describes one render.
type Pass struct {
	ID      string         `json:"id" yaml:"id"`
	Classes []string       `json:"classes" yaml:"classes"`
	Assets  []assets.Asset `json:"assets" yaml:"assets"`
}

// placeholders let html/template parse compiled sources; every pass
// replaces them with the functions of its dispatcher.
var placeholders = template.FuncMap{
	"render": func(string, string, string, ...interface{}) template.HTML { return "" },
	"mark":   func(string) string { return "" },
}

// New creates an engine for reg.
func New(reg *registry.ComponentRegistry, opts Options) *Engine {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.AssetFS == nil {
		opts.AssetFS = opts.FS
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".html", ".tmpl"}
	}
	if opts.Namespace == "" {
		opts.Namespace = "ui"
	}
	if opts.Arguments == nil {
		opts.Arguments = runtime.DefaultArgumentCache()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	e := &Engine{
		opts:      opts,
		registry:  reg,
		logger:    opts.Logger.WithComponent("engine"),
		templates: make(map[string]*Template),
	}

	compilerOpts := []compiler.Option{
		compiler.WithNamespace(opts.Namespace),
		compiler.WithLogger(opts.Logger),
	}
	if opts.StaticRender {
		compilerOpts = append(compilerOpts, compiler.WithStaticDispatcher(func() compiler.StaticDispatcher {
			return runtime.New(reg,
				runtime.WithLogger(opts.Logger),
				runtime.WithArgumentCache(opts.Arguments))
		}))
	}
	e.compiler = compiler.New(reg, compilerOpts...)
	e.assets = assets.New(reg, opts.AssetFS,
		assets.WithDirectories(opts.AssetDirs...),
		assets.WithLogger(opts.Logger))
	return e
}

// FromConfig creates an engine reading templates from the OS filesystem
// as configured. Bundled component assets are served unless a file of
// the same path exists on disk.
func FromConfig(reg *registry.ComponentRegistry, cfg *config.Config, logger logging.Logger) (*Engine, error) {
	cache, err := fragcache.Open(cfg.Cache)
	if err != nil {
		return nil, err
	}
	osfs := afero.NewOsFs()

	return New(reg, Options{
		FS:           osfs,
		Dir:          cfg.Components.TemplatesDir,
		Extensions:   cfg.Components.Extensions,
		Namespace:    cfg.Components.Namespace,
		StaticRender: cfg.Compiler.StaticRender,
		Cache:        cache,
		TTL:          cfg.Cache.TTL,
		Minify:       cfg.Cache.Minify,
		AssetFS:      afero.NewCopyOnWriteFs(component.AssetFS(), osfs),
		AssetDirs:    cfg.Assets.Directories,
		AssetFilter:  cfg.Assets.Exclude,
		Logger:       logger,
	}), nil
}

// Registry returns the component registry.
func (e *Engine) Registry() *registry.ComponentRegistry { return e.registry }

// Compiler returns the template compiler.
func (e *Engine) Compiler() *compiler.Compiler { return e.compiler }

// Assets returns the asset handler.
func (e *Engine) Assets() *assets.Handler { return e.assets }

// Cache returns the fragment cache, or nil.
func (e *Engine) Cache() fragcache.Cache { return e.opts.Cache }

// Dir returns the template root.
func (e *Engine) Dir() string { return e.opts.Dir }

// Diagnostics returns every compile diagnostic reported so far.
func (e *Engine) Diagnostics() []uierrors.Diagnostic {
	return e.compiler.Diagnostics().All()
}

// Load returns the compiled template name, compiling it when it is not
// cached or its file changed since.
func (e *Engine) Load(name string) (*Template, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	file := e.file(name)

	info, err := e.opts.FS.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, uierrors.NewIOError(uierrors.CodeTemplateNotFound,
				fmt.Sprintf("template %s not found", name), err)
		}
		return nil, uierrors.NewIOError(uierrors.CodeTemplateNotFound, "cannot stat template", err)
	}

	e.mu.RLock()
	cached, ok := e.templates[name]
	e.mu.RUnlock()
	if ok && !info.ModTime().After(cached.ModTime) {
		return cached, nil
	}

	v, err, _ := e.group.Do(name, func() (interface{}, error) {
		return e.compile(name, file, info.ModTime())
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

func (e *Engine) compile(name, file string, modTime time.Time) (*Template, error) {
	source, err := afero.ReadFile(e.opts.FS, file)
	if err != nil {
		return nil, uierrors.NewIOError(uierrors.CodeTemplateNotFound, "cannot read template", err)
	}

	start := time.Now()
	res, err := e.compiler.Compile(name, string(source))
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Funcs(placeholders).Parse(res.Source)
	if err != nil {
		return nil, uierrors.NewCompileError(uierrors.CodeParseFailure,
			"compiled template does not parse", err).WithLocation(name, 0)
	}

	t := &Template{Name: name, ModTime: modTime, Compiled: res, tmpl: tmpl}
	e.mu.Lock()
	e.templates[name] = t
	e.mu.Unlock()

	e.logger.Debug(context.Background(), "compiled {template}: {compiled} components, {prerendered} prerendered",
		"template", name,
		"compiled", res.Compiled,
		"prerendered", res.Prerendered,
		"skipped", res.Skipped,
		"duration", time.Since(start))
	return t, nil
}

// Render executes template name with data and writes the output to w.
// Nothing is written when execution fails.
func (e *Engine) Render(ctx context.Context, w io.Writer, name string, data interface{}) (*Pass, error) {
	t, err := e.Load(name)
	if err != nil {
		return nil, err
	}

	d := e.dispatcher(ctx)
	tmpl, err := t.tmpl.Clone()
	if err != nil {
		return nil, uierrors.NewRenderError(uierrors.CodeRenderFailure, "cannot clone template", err)
	}
	tmpl.Funcs(d.FuncMap())

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, uierrors.NewRenderError(uierrors.CodeRenderFailure,
			fmt.Sprintf("cannot execute %s", t.Name), err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return nil, err
	}

	return &Pass{
		ID:      d.ID(),
		Classes: d.Invocations().Classes(),
		Assets:  e.assets.ComponentAssets(d.Invocations(), e.opts.AssetFilter...),
	}, nil
}

// RenderString is Render into a string.
func (e *Engine) RenderString(ctx context.Context, name string, data interface{}) (string, *Pass, error) {
	var b strings.Builder
	pass, err := e.Render(ctx, &b, name, data)
	if err != nil {
		return "", nil, err
	}
	return b.String(), pass, nil
}

func (e *Engine) dispatcher(ctx context.Context) *runtime.Dispatcher {
	opts := []runtime.Option{
		runtime.WithLogger(e.opts.Logger),
		runtime.WithContext(ctx),
		runtime.WithArgumentCache(e.opts.Arguments),
		runtime.WithTTL(e.opts.TTL),
		runtime.WithMinify(e.opts.Minify),
	}
	if e.opts.Cache != nil {
		opts = append(opts, runtime.WithCache(e.opts.Cache))
	}
	return runtime.New(e.registry, opts...)
}

// Templates lists the template names below the root, sorted.
func (e *Engine) Templates() ([]string, error) {
	var names []string
	root := filepath.Clean(e.opts.Dir)
	err := afero.Walk(e.opts.FS, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.isTemplate(p) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (e *Engine) isTemplate(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, allowed := range e.opts.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// Invalidate drops the compiled form of the named templates.
func (e *Engine) Invalidate(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range names {
		if clean, err := cleanName(name); err == nil {
			delete(e.templates, clean)
		}
	}
}

// InvalidateAll drops every compiled template.
func (e *Engine) InvalidateAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates = make(map[string]*Template)
}

// Cached reports whether name is compiled and cached.
func (e *Engine) Cached(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.templates[name]
	return ok
}

// HandleChanges is a watcher handler: changed templates are invalidated.
// Any other change, such as an asset, clears the fragment cache since
// rendered output may depend on it.
func (e *Engine) HandleChanges(events []watcher.ChangeEvent) error {
	root, err := filepath.Abs(e.opts.Dir)
	if err != nil {
		return err
	}

	others := false
	for _, event := range events {
		abs, err := filepath.Abs(event.Path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") || !e.isTemplate(abs) {
			others = true
			continue
		}
		e.Invalidate(filepath.ToSlash(rel))
	}

	if others && e.opts.Cache != nil {
		return e.opts.Cache.Clear(context.Background())
	}
	return nil
}

// Watch invalidates every compiled template and clears the fragment
// cache whenever the component registry changes, until ctx is done.
func (e *Engine) Watch(ctx context.Context) {
	events := e.registry.Watch()
	go func() {
		defer e.registry.UnWatch(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				e.InvalidateAll()
				if e.opts.Cache != nil {
					if err := e.opts.Cache.Clear(ctx); err != nil {
						e.logger.Critical(ctx, err, "cannot clear fragment cache")
					}
				}
				e.logger.Info(ctx, "component {class} changed, templates invalidated",
					"class", event.Entry.Class)
			}
		}
	}()
}

// Purge drops expired fragments when the fragment cache supports it.
func (e *Engine) Purge(ctx context.Context) (int64, error) {
	purger, ok := e.opts.Cache.(fragcache.Purger)
	if !ok {
		return 0, nil
	}
	return purger.Purge(ctx)
}

// PurgeEvery purges expired fragments every interval until ctx is done.
// It returns at once when interval is not positive or the cache cannot
// be purged.
func (e *Engine) PurgeEvery(ctx context.Context, interval time.Duration) {
	if _, ok := e.opts.Cache.(fragcache.Purger); !ok || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := e.Purge(ctx)
				if err != nil {
					e.logger.Critical(ctx, err, "cannot purge fragment cache")
					continue
				}
				if removed > 0 {
					e.logger.Debug(ctx, "purged {count} expired fragments", "count", removed)
				}
			}
		}
	}()
}

// Close releases the fragment cache.
func (e *Engine) Close() error {
	if closer, ok := e.opts.Cache.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (e *Engine) file(name string) string {
	return filepath.Join(e.opts.Dir, filepath.FromSlash(name))
}

// cleanName normalizes a slash separated template name and rejects
// names escaping the template root.
func cleanName(name string) (string, error) {
	slashed := filepath.ToSlash(strings.TrimSpace(name))
	clean := path.Clean("/" + slashed)[1:]
	if clean == "" || clean != strings.TrimPrefix(slashed, "./") || strings.HasPrefix(slashed, "/") {
		return "", uierrors.NewIOError(uierrors.CodeTemplateNotFound,
			fmt.Sprintf("invalid template name %q", name), nil)
	}
	return clean, nil
}
