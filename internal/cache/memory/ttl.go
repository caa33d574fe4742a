package memory

import (
	"context"
	"sync"
	"time"
)

// TTLValue caches one value for a fixed duration. Reads share a read lock;
// refreshes are serialized so only one caller hits the loader at a time.
type TTLValue[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	val       T
	fetchedAt time.Time
	valid     bool

	refresh sync.Mutex
}

// NewTTLValue creates an empty cache. now may be nil to use the wall clock.
func NewTTLValue[T any](ttl time.Duration, now func() time.Time) *TTLValue[T] {
	if now == nil {
		now = time.Now
	}
	return &TTLValue[T]{ttl: ttl, now: now}
}

// Peek returns the cached value if it is still fresh.
func (c *TTLValue[T]) Peek() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.valid && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.val, true
	}
	var zero T
	return zero, false
}

// Get returns the cached value, calling load when it is missing or
// expired. Load errors are returned as is and nothing is cached.
func (c *TTLValue[T]) Get(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Peek(); ok {
		return v, nil
	}

	c.refresh.Lock()
	defer c.refresh.Unlock()

	// Another caller may have refreshed while we waited.
	if v, ok := c.Peek(); ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	c.val = v
	c.fetchedAt = c.now()
	c.valid = true
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops the cached value.
func (c *TTLValue[T]) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
