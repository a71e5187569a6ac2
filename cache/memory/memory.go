// Package memory provides a bounded in-process implementation of cache.Cache
// built on github.com/hashicorp/golang-lru/v2.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ggoodman/canvas-mcp/cache"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the time source. Tests use it to step past TTLs.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache is a size-bounded LRU with per-entry TTL.
//
// Expired entries are purged lazily when read. When an insert finds the
// cache full, the expired entry closest to its deadline is evicted first;
// only when nothing has expired does the least recently used entry go.
type Cache struct {
	mu   sync.Mutex
	lru  *simplelru.LRU[string, *cache.Entry]
	size int
	now  func() time.Time
}

var _ cache.Cache = (*Cache)(nil)

// New creates a cache holding at most size entries.
func New(size int, opts ...Option) (*Cache, error) {
	l, err := simplelru.NewLRU[string, *cache.Entry](size, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	c := &Cache{lru: l, size: size, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the live value stored under key.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.IsExpired(c.now()) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Put stores a copy of value under key for ttl.
func (c *Cache) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	entry := &cache.Entry{
		Value:     append([]byte(nil), value...),
		CreatedAt: c.now(),
		TTL:       ttl,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lru.Contains(key) && c.lru.Len() >= c.size {
		c.evictExpired(entry.CreatedAt)
	}
	// If nothing was expired the LRU drops its oldest entry on Add.
	c.lru.Add(key, entry)
	return nil
}

// evictExpired removes the expired entry with the soonest deadline. It
// reports whether anything was removed.
func (c *Cache) evictExpired(now time.Time) bool {
	var (
		victim   string
		deadline time.Time
		found    bool
	)
	for _, k := range c.lru.Keys() {
		e, ok := c.lru.Peek(k)
		if !ok || !e.IsExpired(now) {
			continue
		}
		if !found || e.ExpiresAt().Before(deadline) {
			victim, deadline, found = k, e.ExpiresAt(), true
		}
	}
	if found {
		c.lru.Remove(victim)
	}
	return found
}

// Len reports the number of stored entries, including expired ones that
// have not been purged yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close drops every entry.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
	return nil
}
