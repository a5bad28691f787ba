package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// ComponentRegistry maps component classes to the tags that invoke them
type ComponentRegistry struct {
	entries  map[string]*Entry
	tags     map[string]string // tag -> class
	mutex    sync.RWMutex
	watchers []chan ComponentEvent
}

// Entry describes one registered component class
type Entry struct {
	// Class is the fully qualified identifier, e.g. "example.com/ui/component.Button"
	Class string
	// Name is the short display name used for asset grouping, e.g. "Button"
	Name string
	// Tags lists the element names compiled into calls to this class
	Tags []string
	// Value is the component implementation; the dispatcher checks what it implements
	Value interface{}
	// RegisteredAt records when the entry was last written
	RegisteredAt time.Time
}

// ComponentEvent represents a change in the component registry
type ComponentEvent struct {
	Type      EventType
	Entry     *Entry
	Timestamp time.Time
}

// EventType represents the type of component event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

// NewComponentRegistry creates a new component registry
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		entries:  make(map[string]*Entry),
		tags:     make(map[string]string),
		watchers: make([]chan ComponentEvent, 0),
	}
}

// ClassName returns the class identifier of v: import path plus type name.
func ClassName(v interface{}) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Basename returns the part of a class identifier after the last dot.
func Basename(class string) string {
	if i := strings.LastIndex(class, "."); i >= 0 {
		return class[i+1:]
	}
	return class
}

// Register adds or updates a component in the registry. Tags are matched
// case-insensitively; a tag already owned by another class is an error.
func (r *ComponentRegistry) Register(value interface{}, tags ...string) (*Entry, error) {
	class := ClassName(value)
	if class == "" {
		return nil, uierrors.NewRegistryError(uierrors.CodeUnknownClass, "cannot register a nil component")
	}

	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			normalized = append(normalized, tag)
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, tag := range normalized {
		if owner, taken := r.tags[tag]; taken && owner != class {
			return nil, uierrors.NewRegistryError(uierrors.CodeDuplicateTag,
				fmt.Sprintf("tag <%s> is already registered to %s", tag, owner)).WithComponent(class)
		}
	}

	eventType := EventTypeAdded
	if previous, exists := r.entries[class]; exists {
		eventType = EventTypeUpdated
		for _, tag := range previous.Tags {
			delete(r.tags, tag)
		}
	}

	entry := &Entry{
		Class:        class,
		Name:         Basename(class),
		Tags:         normalized,
		Value:        value,
		RegisteredAt: time.Now(),
	}
	r.entries[class] = entry
	for _, tag := range normalized {
		r.tags[tag] = class
	}

	r.notify(ComponentEvent{Type: eventType, Entry: entry, Timestamp: time.Now()})
	return entry, nil
}

// MustRegister is Register that panics on error, for static wiring.
func (r *ComponentRegistry) MustRegister(value interface{}, tags ...string) *Entry {
	entry, err := r.Register(value, tags...)
	if err != nil {
		panic(err)
	}
	return entry
}

// Get retrieves a component by class identifier
func (r *ComponentRegistry) Get(class string) (*Entry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entry, exists := r.entries[class]
	return entry, exists
}

// Lookup retrieves the component that claims tag
func (r *ComponentRegistry) Lookup(tag string) (*Entry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	class, ok := r.tags[strings.ToLower(tag)]
	if !ok {
		return nil, false
	}
	entry, exists := r.entries[class]
	return entry, exists
}

// Tags returns every registered tag, sorted
func (r *ComponentRegistry) Tags() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tags := make([]string, 0, len(r.tags))
	for tag := range r.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Suggest returns a "did you mean" hint for an unknown tag, or "".
func (r *ComponentRegistry) Suggest(tag string) string {
	return uierrors.DidYouMean(tag, r.Tags())
}

// GetAll returns all registered entries sorted by class
func (r *ComponentRegistry) GetAll() []*Entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Class < result[j].Class })
	return result
}

// Remove removes a component from the registry
func (r *ComponentRegistry) Remove(class string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, exists := r.entries[class]
	if !exists {
		return
	}

	delete(r.entries, class)
	for _, tag := range entry.Tags {
		delete(r.tags, tag)
	}

	r.notify(ComponentEvent{Type: EventTypeRemoved, Entry: entry, Timestamp: time.Now()})
}

// notify must be called with the write lock held
func (r *ComponentRegistry) notify(event ComponentEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Watch returns a channel that receives component events
func (r *ComponentRegistry) Watch() <-chan ComponentEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan ComponentEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *ComponentRegistry) UnWatch(ch <-chan ComponentEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered components
func (r *ComponentRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.entries)
}
