// Package runtime executes compiled component calls. A Dispatcher is
// created for every render pass; templates reach it through the render
// and mark functions of its FuncMap.
//
// For each call the dispatcher resolves the component class, records the
// invocation so the assets of the pass can be collected, resolves
// arguments through an optional per-class callback and renders the
// component, directly or through the fragment cache. Failures never
// abort the template: they are logged and the call yields empty output.
package runtime

import (
	"bytes"
	"context"
	"html/template"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/conneroisu/uikit/internal/element"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/fragcache"
	"github.com/conneroisu/uikit/internal/logging"
	"github.com/conneroisu/uikit/internal/registry"
)

// Renderer is the render entry point a component class must expose.
type Renderer interface {
	Render(ctx context.Context, args Arguments) (templ.Component, error)
}

// Dispatcher routes compiled component calls to registered components.
type Dispatcher struct {
	id          string
	registry    *registry.ComponentRegistry
	invocations *Invocations
	arguments   *ArgumentCache
	cache       fragcache.Cache
	ttl         time.Duration
	minify      bool
	logger      logging.Logger
	ctx         context.Context

	mu        sync.RWMutex
	callbacks map[string]registeredCallback
}

// registeredCallback is a dispatcher-level argument callback. The source
// keeps its results apart from other callbacks of the same class in a
// shared argument cache.
type registeredCallback struct {
	source string
	fn     ArgumentCallback
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger diagnostics go to.
func WithLogger(logger logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithCache enables fragment caching through cache.
func WithCache(cache fragcache.Cache) Option {
	return func(d *Dispatcher) { d.cache = cache }
}

// WithTTL sets the expiry used by the auto policy. Zero stores without expiry.
func WithTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) { d.ttl = ttl }
}

// WithMinify minifies fragments before they are stored in the cache.
func WithMinify(enabled bool) Option {
	return func(d *Dispatcher) { d.minify = enabled }
}

// WithArgumentCache replaces the process-wide argument cache.
func WithArgumentCache(cache *ArgumentCache) Option {
	return func(d *Dispatcher) { d.arguments = cache }
}

// WithContext sets the context template calls run under.
func WithContext(ctx context.Context) Option {
	return func(d *Dispatcher) { d.ctx = ctx }
}

// New creates a dispatcher for one render pass with an empty invocation registry.
func New(reg *registry.ComponentRegistry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		id:          uuid.NewString(),
		registry:    reg,
		invocations: NewInvocations(),
		arguments:   DefaultArgumentCache(),
		logger:      logging.Nop(),
		ctx:         context.Background(),
		callbacks:   make(map[string]registeredCallback),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("runtime").With("pass", d.id)
	d.ctx = WithInvocations(d.ctx, d.invocations)
	return d
}

// ID identifies the render pass.
func (d *Dispatcher) ID() string { return d.id }

// Context returns the context of the pass; it carries the invocation registry.
func (d *Dispatcher) Context() context.Context { return d.ctx }

// Invocations returns the classes invoked so far in this pass.
func (d *Dispatcher) Invocations() *Invocations { return d.invocations }

// AddArgumentCallback registers fn to transform the arguments of class.
// It takes precedence over the component's own ArgumentResolver.
func (d *Dispatcher) AddArgumentCallback(class string, fn ArgumentCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[class] = registeredCallback{source: uuid.NewString(), fn: fn}
}

// FuncMap returns the template functions compiled templates call.
func (d *Dispatcher) FuncMap() template.FuncMap {
	return template.FuncMap{
		"render": d.Render,
		"mark":   d.Mark,
	}
}

// Mark records an invocation rendered ahead of time by the compiler.
func (d *Dispatcher) Mark(class string) string {
	d.invocations.Register(class)
	return ""
}

// Render is the template entry point: it decodes the compiled argument
// skeleton, binds the positional values and invokes class.
func (d *Dispatcher) Render(class, skeleton, policy string, values ...interface{}) template.HTML {
	p, err := ParsePolicy(policy)
	if err != nil {
		d.logger.Error(d.ctx, err, "invalid cache policy for {class}", "class", class)
		return ""
	}
	sk, err := ParseSkeleton(skeleton)
	if err != nil {
		d.logger.Error(d.ctx, err, "cannot decode arguments of {class}", "class", class)
		return ""
	}
	args, err := sk.Bind(values)
	if err != nil {
		d.logger.Error(d.ctx, err, "cannot bind arguments of {class}", "class", class)
		return ""
	}

	out, _ := d.Invoke(d.ctx, class, args, p)
	// Components produce escaped markup.
	return template.HTML(out)
}

// Invoke renders class with args under policy. It reports false when
// the call degraded to empty output; the reason has been logged.
func (d *Dispatcher) Invoke(ctx context.Context, class string, args Arguments, policy Policy) (string, bool) {
	if _, ok := InvocationsFrom(ctx); !ok {
		ctx = WithInvocations(ctx, d.invocations)
	}

	entry, ok := d.registry.Get(class)
	if !ok {
		d.logger.Notice(ctx, "undefined component class {class}", "class", class)
		return "", false
	}
	renderer, ok := entry.Value.(Renderer)
	if !ok {
		err := uierrors.NewRenderError(uierrors.CodeMissingRender,
			"component does not implement Render", nil).WithComponent(entry.Name)
		d.logger.Error(ctx, err, "component {class} has no render entry point", "class", class)
		return "", false
	}

	RegisterInvocation(ctx, class)

	if source, callback := d.callback(entry); callback != nil {
		resolved, err := d.arguments.ResolveFrom(class, source, args, callback)
		if err != nil {
			d.logFailure(ctx, err, class, "cannot resolve arguments of {class}")
			return "", false
		}
		args = resolved
	}

	render := func() (string, error) {
		return renderComponent(ctx, renderer, args)
	}

	if d.cache == nil || !policy.Cacheable() {
		out, err := render()
		if err != nil {
			d.logFailure(ctx, err, class, "cannot render {class}")
			return "", false
		}
		return out, true
	}

	key, err := cacheKey(class, args)
	if err != nil {
		d.logger.Critical(ctx, err, "cannot build cache key for {class}", "class", class)
		return "", false
	}
	out, err := d.cache.Get(ctx, key, policy.ttl(d.ttl), func() (string, error) {
		out, err := render()
		if err != nil {
			return "", err
		}
		if d.minify {
			out = minifyHTML(out)
		}
		return out, nil
	})
	if err != nil {
		d.logFailure(ctx, err, class, "cannot render {class} through the cache")
		return "", false
	}
	return out, true
}

// callback returns the argument callback of entry and the source its
// results are cached under. The component's own resolver has source "".
func (d *Dispatcher) callback(entry *registry.Entry) (string, ArgumentCallback) {
	d.mu.RLock()
	cb, ok := d.callbacks[entry.Class]
	d.mu.RUnlock()
	if ok {
		return cb.source, cb.fn
	}
	if resolver, ok := entry.Value.(ArgumentResolver); ok {
		return "", resolver.ResolveArguments
	}
	return "", nil
}

// logFailure logs render failures as errors and everything else, cache
// and key failures included, as critical.
func (d *Dispatcher) logFailure(ctx context.Context, err error, class, msg string) {
	if uierrors.IsType(err, uierrors.ErrorTypeRender) {
		d.logger.Error(ctx, err, msg, "class", class)
		return
	}
	d.logger.Critical(ctx, err, msg, "class", class)
}

// cacheKey keeps the class readable in the key but hashes the exact
// class with the arguments, so classes that normalize alike stay apart.
func cacheKey(class string, args Arguments) (string, error) {
	hash, err := hashArguments(args)
	if err != nil {
		return "", err
	}
	hash, err = fragcache.HashKey([]string{class, hash})
	if err != nil {
		return "", err
	}
	return fragcache.NormalizeKey(class, hash)
}

// hashArguments hashes args with the dynamic type of every bound value,
// so a template.HTML and a string with the same text never share a key.
func hashArguments(args Arguments) (string, error) {
	return fragcache.HashKey(struct {
		Tag        string             `json:"tag"`
		Attributes element.Attributes `json:"attributes"`
		Variables  interface{}        `json:"variables"`
		Content    element.Content    `json:"content"`
	}{args.Tag, args.Attributes, fragcache.Typed(args.Variables), typedContent(args.Content)})
}

func typedContent(c element.Content) element.Content {
	if c == nil {
		return nil
	}
	out := make(element.Content, len(c))
	for i, n := range c {
		n.Value = fragcache.Typed(n.Value)
		if n.Element != nil {
			el := *n.Element
			el.Content = typedContent(el.Content)
			n.Element = &el
		}
		out[i] = n
	}
	return out
}

func renderComponent(ctx context.Context, renderer Renderer, args Arguments) (string, error) {
	component, err := renderer.Render(ctx, args)
	if err != nil {
		return "", asRenderError(err)
	}
	if component == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return "", asRenderError(err)
	}
	return buf.String(), nil
}

func asRenderError(err error) error {
	var uiErr *uierrors.UIError
	if uierrors.As(err, &uiErr) {
		return err
	}
	return uierrors.NewRenderError(uierrors.CodeRenderFailure, "render failed", err)
}

// Nested renders a component from inside another component and records
// its invocation in the registry carried by ctx.
func Nested(ctx context.Context, component interface{}, args Arguments) (templ.Component, error) {
	renderer, ok := component.(Renderer)
	if !ok {
		return nil, uierrors.NewRenderError(uierrors.CodeMissingRender,
			"component does not implement Render", nil).WithComponent(registry.ClassName(component))
	}
	RegisterInvocation(ctx, registry.ClassName(component))
	return renderer.Render(ctx, args)
}
