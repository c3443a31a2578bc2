package cache

import (
	"context"
	"time"
)

// LayeredOption configures a LayeredCache.
type LayeredOption func(*LayeredCache)

// WithL1Limit caps the in-process layer's entry count.
func WithL1Limit(n int) LayeredOption {
	return func(c *LayeredCache) { c.l1Limit = n }
}

// WithPromoteTTL sets how long an L2 hit is kept in L1. Short on purpose:
// L1 is never invalidated across instances, so staleness is bounded by
// this window.
func WithPromoteTTL(d time.Duration) LayeredOption {
	return func(c *LayeredCache) {
		if d > 0 {
			c.promoteTTL = d
		}
	}
}

// LayeredCache fronts Redis with a small in-process layer. Reads hit L1
// first; writes and deletes go through to both. Locks go straight to Redis,
// the only place they are meaningful across instances.
type LayeredCache struct {
	l1         *MemoryCache
	l2         *RedisCache
	l1Limit    int
	promoteTTL time.Duration
}

// NewLayeredCache wraps an existing RedisCache with an L1 layer.
func NewLayeredCache(l2 *RedisCache, opts ...LayeredOption) *LayeredCache {
	c := &LayeredCache{
		l2:         l2,
		l1Limit:    1000,
		promoteTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.l1 = NewMemoryCache(WithMemoryLimit(c.l1Limit))
	return c
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	_ = c.l1.Set(ctx, key, value, ttl)
	return nil
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := c.l2.Get(ctx, key, dest); err != nil {
		return err
	}
	// promote a copy of the value, not the caller's pointer
	switch d := dest.(type) {
	case *string:
		_ = c.l1.Set(ctx, key, *d, c.promoteTTL)
	case *[]byte:
		_ = c.l1.Set(ctx, key, *d, c.promoteTTL)
	}
	return nil
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	return c.l2.Delete(ctx, keys...)
}

func (c *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.l2.TryLock(ctx, key, ttl)
}

func (c *LayeredCache) Unlock(ctx context.Context, key string) error {
	return c.l2.Unlock(ctx, key)
}

// Close shuts down both layers.
func (c *LayeredCache) Close() error {
	_ = c.l1.Close()
	return c.l2.Close()
}
