// Package redis provides a Redis-backed implementation of cache.Cache so that
// several server processes can share one response cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/canvas-mcp/cache"
	"github.com/redis/go-redis/v9"
)

// Config contains configuration options for the Redis cache
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "canvas-mcp:cache:"
	KeyPrefix string
}

// Cache implements cache.Cache using Redis. Expiry is delegated to Redis key
// TTLs, so expired entries are never returned.
type Cache struct {
	client    *redis.Client
	keyPrefix string
}

var _ cache.Cache = (*Cache)(nil)

// New creates a new Redis-based cache instance.
func New(config Config) (*Cache, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "canvas-mcp:cache:"
	}

	return &Cache{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

// Get retrieves the value stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, true, nil
}

// Put stores value under key with a Redis expiry of ttl.
func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (c *Cache) Close() error {
	return nil
}
