// Package cache provides generic TTL caches used in front of external lookups
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Store is a keyed cache tier. Implementations must be safe for concurrent use.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, value T) error
}

// item wraps a cached value with its expiration time
type item[T any] struct {
	value     T
	expiresAt time.Time
}

// Memory is a thread-safe in-process cache with TTL expiration
type Memory[T any] struct {
	items map[string]item[T]
	mu    sync.RWMutex
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory creates a cache with the specified TTL and starts its janitor
func NewMemory[T any](ttl time.Duration) *Memory[T] {
	c := &Memory[T]{
		items: make(map[string]item[T]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get retrieves a value, reporting true if found and not expired
func (c *Memory[T]) Get(_ context.Context, key string) (T, bool, error) {
	c.mu.RLock()
	it, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || time.Now().After(it.expiresAt) {
		c.misses.Add(1)
		var zero T
		return zero, false, nil
	}
	c.hits.Add(1)
	return it.value, true, nil
}

// Set stores a value with the cache's TTL
func (c *Memory[T]) Set(_ context.Context, key string, value T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

// Delete removes a key from the cache
func (c *Memory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Size returns the number of items (including expired)
func (c *Memory[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns hit and miss counters since creation
func (c *Memory[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the background cleanup goroutine
func (c *Memory[T]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Memory[T]) cleanup() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Memory[T]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
		}
	}
}
