package relgraph

import (
	"context"
	"strconv"
	"time"
)

// Cache is the byte store used to persist graph snapshots.
// The cache/memory and cache/sqlite packages provide implementations;
// any other key-value store (Redis, Memcached) can be plugged in.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a persisted snapshot.
type CacheKey struct {
	Namespace string
	Name      string
	Version   int
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	ns := k.Namespace
	if ns == "" {
		ns = "relgraph"
	}
	return ns + ":snapshot:" + k.Name + ":v" + strconv.Itoa(k.Version)
}
