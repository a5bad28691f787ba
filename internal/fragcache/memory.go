package fragcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Memory is an in-process fragment cache with LRU eviction by total size
// and per-entry expiry.
type Memory struct {
	entries     map[string]*entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	// LRU doubly-linked list with sentinel head and tail
	head *entry
	tail *entry
	// concurrent misses on one key share a single compute
	group singleflight.Group
	now   func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	key       string
	value     string
	expiresAt time.Time
	size      int64
	prev      *entry
	next      *entry
}

var (
	_ Cache  = (*Memory)(nil)
	_ Purger = (*Memory)(nil)
)

// NewMemory creates a memory cache holding at most maxSize bytes of fragments
func NewMemory(maxSize int64) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		head:    &entry{},
		tail:    &entry{},
		now:     time.Now,
	}
	m.head.next = m.tail
	m.tail.prev = m.head
	return m
}

// Get returns the cached fragment or computes and stores it
func (m *Memory) Get(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if value, ok := m.lookup(key); ok {
		return value, nil
	}

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		// another caller may have stored it while we waited on the group
		if value, ok := m.peek(key); ok {
			return value, nil
		}
		value, err := compute()
		if err != nil {
			return "", err
		}
		m.store(key, value, ttl)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Memory) lookup(key string) (string, bool) {
	value, ok := m.peek(key)
	if ok {
		atomic.AddInt64(&m.hits, 1)
	} else {
		atomic.AddInt64(&m.misses, 1)
	}
	return value, ok
}

func (m *Memory) peek(key string) (string, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	e, exists := m.entries[key]
	if !exists {
		return "", false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.unlink(e)
		return "", false
	}
	m.moveToFront(e)
	return e.value, true
}

func (m *Memory) store(key, value string, ttl time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	size := int64(len(key) + len(value))
	if existing, ok := m.entries[key]; ok {
		m.unlink(existing)
	}
	if size > m.maxSize {
		return
	}

	for m.currentSize+size > m.maxSize && m.tail.prev != m.head {
		m.unlink(m.tail.prev)
		atomic.AddInt64(&m.evictions, 1)
	}

	e := &entry{key: key, value: value, expiresAt: expiry(m.now(), ttl), size: size}
	m.entries[key] = e
	m.currentSize += size
	m.addToFront(e)
}

// Delete removes key
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if e, ok := m.entries[key]; ok {
		m.unlink(e)
	}
	return nil
}

// Clear clears all cache entries and resets statistics
func (m *Memory) Clear(context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.entries = make(map[string]*entry)
	m.currentSize = 0
	m.head.next = m.tail
	m.tail.prev = m.head

	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
	atomic.StoreInt64(&m.evictions, 0)
	return nil
}

// Purge drops expired entries.
func (m *Memory) Purge(context.Context) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	var removed int64
	for _, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			m.unlink(e)
			removed++
		}
	}
	return removed, nil
}

// Stats returns cache statistics
func (m *Memory) Stats() Stats {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return Stats{
		Entries:   len(m.entries),
		Size:      m.currentSize,
		MaxSize:   m.maxSize,
		Hits:      atomic.LoadInt64(&m.hits),
		Misses:    atomic.LoadInt64(&m.misses),
		Evictions: atomic.LoadInt64(&m.evictions),
	}
}

// unlink removes e from the list and the index; caller holds the lock
func (m *Memory) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(m.entries, e.key)
	m.currentSize -= e.size
}

func (m *Memory) addToFront(e *entry) {
	e.prev = m.head
	e.next = m.head.next
	m.head.next.prev = e
	m.head.next = e
}

func (m *Memory) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	m.addToFront(e)
}
