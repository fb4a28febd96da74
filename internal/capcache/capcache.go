// Package capcache provides a fixed-capacity memoization cache whose entries
// record either a resolved value or a not-found outcome.
package capcache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is used when a cache is created with a non-positive capacity.
const DefaultCapacity = 512

// Outcome is the result of one resolution attempt: Found(v) or NotFound(err).
type Outcome[V any] struct {
	value V
	err   error
	found bool
}

// Found records a successful resolution.
func Found[V any](v V) Outcome[V] {
	return Outcome[V]{value: v, found: true}
}

// NotFound records a failed resolution. err is returned verbatim on every hit.
func NotFound[V any](err error) Outcome[V] {
	return Outcome[V]{err: err}
}

// IsFound reports whether the outcome holds a value.
func (o Outcome[V]) IsFound() bool { return o.found }

// Err returns the recorded failure, nil for Found outcomes.
func (o Outcome[V]) Err() error { return o.err }

// Value returns the stored value or the recorded failure.
func (o Outcome[V]) Value() (V, error) {
	if !o.found {
		var zero V
		return zero, o.err
	}
	return o.value, nil
}

// Stats contains cache performance statistics.
type Stats struct {
	Hits       int64 // Number of cache hits
	Misses     int64 // Number of cache misses
	Entries    int   // Current number of entries
	MaxEntries int   // Maximum capacity
}

// HitRate returns the cache hit rate as a percentage (0-100).
// Returns 0 if no lookups have been performed.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cache maps string keys to outcomes and never holds more than its capacity.
// When full, the least recently used entry is evicted. Get and Set are atomic
// with respect to each other; it is safe for concurrent use.
type Cache[V any] struct {
	lru      *lru.Cache[string, Outcome[V]]
	capacity int
	hits     atomic.Int64
	misses   atomic.Int64
}

// New returns an empty cache holding at most capacity entries.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// lru.New only fails for a non-positive size.
	l, _ := lru.New[string, Outcome[V]](capacity)
	return &Cache[V]{lru: l, capacity: capacity}
}

// Get returns the outcome stored for key. ok is false when the key was never
// set or has been evicted.
func (c *Cache[V]) Get(key string) (Outcome[V], bool) {
	o, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return o, ok
}

// Set stores or replaces the outcome for key, evicting one entry if needed.
// It reports whether an eviction happened.
func (c *Cache[V]) Set(key string, o Outcome[V]) bool {
	return c.lru.Add(key, o)
}

// Remove drops key from the cache.
func (c *Cache[V]) Remove(key string) {
	c.lru.Remove(key)
}

// Purge drops every entry. Statistics are kept.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of entries currently held.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Capacity returns the maximum number of entries.
func (c *Cache[V]) Capacity() int {
	return c.capacity
}

// Stats returns a snapshot of hit/miss counters and occupancy.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Entries:    c.lru.Len(),
		MaxEntries: c.capacity,
	}
}
