// Package memory provides an in-process relgraph.Cache.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/syssam/relgraph"
)

var _ relgraph.Cache = (*Cache)(nil)

type entry struct {
	value   []byte
	expires time.Time // zero: never
}

// Cache is a map guarded by a mutex. Expired entries are dropped lazily.
type Cache struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New returns an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{items: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the value under key, or nil if it is missing or expired.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, nil
	}
	return slices.Clone(e.value), nil
}

// Set stores a copy of value.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte{}, value...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (c *Cache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

// Clear removes everything.
func (c *Cache) Clear(context.Context) error {
	c.mu.Lock()
	clear(c.items)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
