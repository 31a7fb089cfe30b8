// Package cache abstracts the key/value store backing the loader's
// discovery cache (SPEC_FULL §4.7): a (tag, source-hash) pair maps to
// "already discovered successfully", with no particular backing store
// assumed. Encoding is left to the caller — every value crossing this
// interface is an opaque byte slice.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or has expired.
var ErrMiss = errors.New("cache: no entry for key")

// Store is a concurrency-safe key/value cache with per-entry expiry.
type Store interface {
	// Fetch retrieves key's value, or ErrMiss if absent/expired.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Put records value under key with ttl; zero ttl means no expiry
	// (or the implementation's own default).
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Evict removes key. Evicting an absent key is not an error.
	Evict(ctx context.Context, key string) error

	// Contains reports whether key is present and unexpired.
	Contains(ctx context.Context, key string) (bool, error)

	// Healthy verifies the backing store is reachable.
	Healthy(ctx context.Context) error

	// Shutdown releases resources held by the store.
	Shutdown() error
}
