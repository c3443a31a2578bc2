package cache

import (
	"context"
	"time"
)

// BytesCache stores raw bytes under a TTL. The reporting handlers use it to
// memoize rendered JSON responses for a few seconds; the context bounds
// lookups against backends that can stall.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

var (
	_ BytesCache = (*TTLCache)(nil)
	_ BytesCache = (*RedisCache)(nil)
)
