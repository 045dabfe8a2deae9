package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads with a TTL.
// The reference dataset loader uses it so restarts don't re-download the dataset.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// GetOrSet retrieves a value or computes and stores it if missing.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)
}

// Locker hands out named, expiring run-locks so overlapping job triggers skip
// instead of running concurrently.
type Locker interface {
	// TryLock acquires name for ttl. Returns false when someone else holds it.
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Unlock releases name.
	Unlock(ctx context.Context, name string) error
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)
