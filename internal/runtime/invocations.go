package runtime

import (
	"context"
	"sort"
	"sync"

	"github.com/conneroisu/uikit/internal/registry"
)

// Invocations records which component classes a render pass invoked,
// mapping each class to its short display name.
type Invocations struct {
	mu      sync.RWMutex
	classes map[string]string
}

// NewInvocations creates an empty registry.
func NewInvocations() *Invocations {
	return &Invocations{classes: make(map[string]string)}
}

// Register records class and reports whether it was new. Registering a
// class again is a no-op.
func (i *Invocations) Register(class string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.classes[class]; ok {
		return false
	}
	i.classes[class] = registry.Basename(class)
	return true
}

// Has reports whether class was invoked.
func (i *Invocations) Has(class string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.classes[class]
	return ok
}

// Classes returns the invoked classes, sorted.
func (i *Invocations) Classes() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]string, 0, len(i.classes))
	for class := range i.classes {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// Names returns a copy of the class to display name mapping.
func (i *Invocations) Names() map[string]string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make(map[string]string, len(i.classes))
	for class, name := range i.classes {
		out[class] = name
	}
	return out
}

// Len returns the number of distinct invoked classes.
func (i *Invocations) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.classes)
}

type invocationsKey struct{}

// WithInvocations returns a context carrying inv.
func WithInvocations(ctx context.Context, inv *Invocations) context.Context {
	return context.WithValue(ctx, invocationsKey{}, inv)
}

// InvocationsFrom returns the registry carried by ctx, if any.
func InvocationsFrom(ctx context.Context) (*Invocations, bool) {
	inv, ok := ctx.Value(invocationsKey{}).(*Invocations)
	return inv, ok && inv != nil
}

// RegisterInvocation records class in the registry carried by ctx. It
// reports false when ctx carries none or class was already recorded.
func RegisterInvocation(ctx context.Context, class string) bool {
	inv, ok := InvocationsFrom(ctx)
	if !ok {
		return false
	}
	return inv.Register(class)
}
