package cache

import (
	"context"
	"sync"
	"time"
)

// sweepAt bounds map growth: once the cache holds this many keys, each Set
// first evicts everything already expired.
const sweepAt = 4096

type entry struct {
	b   []byte
	exp int64 // unix nanos, zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return e.exp != 0 && now.UnixNano() > e.exp
}

// TTLCache is an in-process BytesCache used when Redis is disabled. Expired
// keys are dropped lazily on read and swept on write once the map grows past
// sweepAt. Lookups are local, so the context is unused.
type TTLCache struct {
	mu sync.RWMutex
	m  map[string]entry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]entry)}
}

func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(now) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have refreshed the key.
		if cur, live := c.m[key]; live && cur.expired(now) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.b, true, nil
}

func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{b: value}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl).UnixNano()
	}
	c.mu.Lock()
	if len(c.m) >= sweepAt {
		now := time.Now()
		for k, old := range c.m {
			if old.expired(now) {
				delete(c.m, k)
			}
		}
	}
	c.m[key] = e
	c.mu.Unlock()
	return nil
}
