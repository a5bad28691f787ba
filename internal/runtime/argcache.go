package runtime

import (
	"sync"

	"github.com/mitchellh/copystructure"

	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// ArgumentCallback derives the arguments a component renders with.
type ArgumentCallback func(Arguments) (Arguments, error)

// ArgumentResolver is implemented by components that transform their
// own arguments. The result is cached per class and argument hash.
type ArgumentResolver interface {
	ResolveArguments(Arguments) (Arguments, error)
}

// ArgumentCache memoizes argument callbacks by class, callback source and
// a hash of the raw arguments. Entries are never evicted; stored and returned values
// are deep copies so callers cannot mutate cached state.
type ArgumentCache struct {
	mu      sync.RWMutex
	entries map[string]Arguments
}

var defaultArguments = NewArgumentCache()

// DefaultArgumentCache returns the process-wide cache dispatchers use
// unless configured otherwise.
func DefaultArgumentCache() *ArgumentCache {
	return defaultArguments
}

// NewArgumentCache creates an empty cache.
func NewArgumentCache() *ArgumentCache {
	return &ArgumentCache{entries: make(map[string]Arguments)}
}

// Resolve returns the cached transformation of args for class, calling
// fn only on a miss. Callback errors are not cached.
func (c *ArgumentCache) Resolve(class string, args Arguments, fn ArgumentCallback) (Arguments, error) {
	return c.ResolveFrom(class, "", args, fn)
}

// ResolveFrom is Resolve for a callback identified by source. Callbacks
// with different sources never share results for the same class.
func (c *ArgumentCache) ResolveFrom(class, source string, args Arguments, fn ArgumentCallback) (Arguments, error) {
	hash, err := hashArguments(args)
	if err != nil {
		return args, err
	}
	key := class + "\x00" + source + "\x00" + hash

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return deepCopy(cached)
	}

	input, err := deepCopy(args)
	if err != nil {
		return args, err
	}
	resolved, err := fn(input)
	if err != nil {
		return args, uierrors.NewRenderError(uierrors.CodeInvalidArguments,
			"argument callback failed", err).WithComponent(class)
	}

	stored, err := deepCopy(resolved)
	if err != nil {
		return args, err
	}
	c.mu.Lock()
	c.entries[key] = stored
	c.mu.Unlock()

	return resolved, nil
}

// Len returns the number of cached transformations.
func (c *ArgumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func deepCopy(args Arguments) (Arguments, error) {
	out, err := copystructure.Copy(args)
	if err != nil {
		return args, uierrors.NewInternalError("COPY_FAILURE", "cannot copy arguments", err)
	}
	return out.(Arguments), nil
}
