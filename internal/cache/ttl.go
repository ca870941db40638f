package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value  V
	expiry time.Time
}

// TTL is a key/value cache where every entry carries its own expiry,
// checked lazily on read. It owns no source of truth; absence and expiry
// are indistinguishable and both mean "recompute".
type TTL[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	now     func() time.Time
}

// New creates an empty cache.
func New[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// NewWithClock creates a cache with an injected clock, for tests.
func NewWithClock[K comparable, V any](now func() time.Time) *TTL[K, V] {
	c := New[K, V]()
	c.now = now
	return c
}

// Get returns the value for key if present and not expired. An expired
// entry is evicted and reported as a miss.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiry) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl, unconditionally overwriting any
// previous entry. A zero or negative ttl produces an entry that is
// already expired.
func (c *TTL[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiry: c.now().Add(ttl)}
}

// Delete removes the entry for key, if any.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Reset drops every entry. Used when the data the cache was computed
// against changes wholesale.
func (c *TTL[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]entry[V])
}

// Len returns the number of entries, including not-yet-evicted expired ones.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
