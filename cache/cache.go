package cache

import (
	"context"
	"errors"
	"time"
)

// TTLs for the well-known cache entries.
const (
	CitiesTTL   = 3600 * time.Second
	UpstreamTTL = 86400 * time.Second
	EntityTTL   = 3600 * time.Second
)

var ErrMiss = errors.New("cache miss")

// Cache is the shared key-value cache. Implementations must treat a
// zero TTL as "no expiry".
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Deletes all keys matching a glob-style pattern, e.g.
	// "cities:*".
	DeleteByPattern(ctx context.Context, pattern string) error

	Exists(ctx context.Context, key string) (bool, error)

	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	MSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration) error
}
