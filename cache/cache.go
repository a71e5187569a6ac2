// Package cache defines the response cache used to memoize idempotent tool
// calls, along with the canonical key derivation shared by every backend.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache stores encoded tool results for a bounded lifetime.
//
// Implementations must be safe for concurrent use. Entries are immutable
// once written and are replaced wholesale by a later Put for the same key.
type Cache interface {
	// Get returns the value stored under key. Absent and expired entries
	// both report ok == false. An error is returned only for backend
	// failures; callers treat it as a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put stores value under key for ttl, overwriting any existing entry.
	// A non-positive ttl stores nothing.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases resources held by the backend.
	Close() error
}

// Entry is a single cached value together with its lifetime.
type Entry struct {
	Value     []byte
	CreatedAt time.Time
	TTL       time.Duration
}

// ExpiresAt reports the instant after which the entry is treated as absent.
func (e *Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// IsExpired reports whether the entry has outlived its TTL at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// Key derives the canonical cache key for a call to method with params.
//
// params must already be in canonical form (identifiers coerced to their
// string form by the validator). Object keys are serialized in sorted order
// so key ordering in the caller's payload never affects the result.
func Key(method string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("canonicalize params for %s: %w", method, err)
	}
	return fmt.Sprintf("%s:%016x", method, xxhash.Sum64(b)), nil
}
