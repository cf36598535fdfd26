// Package cache holds short-lived snapshots of computed result sets.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     any
	createdAt time.Time
}

// Cache is a TTL snapshot cache. One instance is built at process start and
// handed to whoever needs it; the clock is injectable for tests. Values are
// stored whole, so readers never observe a mix of two computation passes.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
}

func New(ttl time.Duration) *Cache {
	return NewWithClock(ttl, time.Now)
}

func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     now,
	}
}

// GetOrCompute returns the cached value for key if it is younger than the
// TTL, otherwise runs compute once (concurrent callers share the same run
// via singleflight) and stores the result with a fresh timestamp. A failed
// compute caches nothing.
func (c *Cache) GetOrCompute(key string, compute func() (any, error)) (any, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// a peer may have finished while we waited on the flight
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry{value: v, createdAt: c.now()}
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Invalidate drops the entry so the next read recomputes.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Age reports how old the cached entry is. ok is false when the key is
// absent or expired.
func (c *Cache) Age(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	age := c.now().Sub(e.createdAt)
	if age >= c.ttl {
		return 0, false
	}
	return age, true
}
