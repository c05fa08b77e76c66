// Package cache provides the short-lived, process-wide cache for fetched
// manifest documents.
//
// Entries live for a fixed TTL and are evicted lazily: an expired entry is
// removed by the lookup that finds it. Values are treated as immutable once
// stored, so concurrent readers never need more than a read lock.
package cache

import (
	"sync"
	"time"
)

// TTL is the lifetime of every cache entry.
const TTL = 300 * time.Second

// Key identifies a cached value. Mirror doubles as the purge tag.
type Key struct {
	Kind   string
	Mirror string
	ID     string
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a concurrent map with a fixed time-to-live.
type Cache struct {
	clock Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[Key]entry
}

// New creates a cache. A nil clock means the system clock.
func New(clock Clock) *Cache {
	if clock == nil {
		clock = RealClock{}
	}
	return &Cache{
		clock:   clock,
		ttl:     TTL,
		entries: make(map[Key]entry),
	}
}

// Get returns the value stored under key if it has not expired.
func (c *Cache) Get(key Key) (any, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !now.Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have refreshed it.
		if cur, still := c.entries[key]; still && !now.Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Put stores value under key. Last writer wins.
func (c *Cache) Put(key Key, value any) {
	expiresAt := c.clock.Now().Add(c.ttl)

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Purge removes every entry whose key satisfies match and returns how many
// were removed.
func (c *Cache) Purge(match func(Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// PurgeMirror removes every entry tagged with mirror.
func (c *Cache) PurgeMirror(mirror string) int {
	return c.Purge(func(k Key) bool { return k.Mirror == mirror })
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetTyped is Get with a type assertion. A value of another type is a miss.
func GetTyped[T any](c *Cache, key Key) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
