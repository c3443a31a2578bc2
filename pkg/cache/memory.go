package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMemoryLimit caps the number of live entries before LRU eviction.
func WithMemoryLimit(n int) MemoryOption {
	return func(c *MemoryCache) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithSweepInterval sets how often expired entries are swept out.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		if d > 0 {
			c.sweepEvery = d
		}
	}
}

type memoryEntry struct {
	key      string
	value    interface{}
	expireAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expireAt)
}

// MemoryCache is an in-process Service. Entries live in a map plus a
// recency list, so eviction is O(1) rather than a full scan.
type MemoryCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	limit      int
	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// Entries without an explicit TTL stay for a week, long enough to be
// effectively permanent for a process that restarts on deploy.
const defaultMemoryTTL = 7 * 24 * time.Hour

// NewMemoryCache creates a memory cache and starts its sweep goroutine.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		limit:      1000,
		sweepEvery: 5 * time.Minute,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweeper()
	return c
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value = value
		e.expireAt = time.Now().Add(ttl)
		c.order.MoveToFront(el)
		return nil
	}

	for len(c.items) >= c.limit {
		c.evictOldestLocked()
	}
	e := &memoryEntry{key: key, value: value, expireAt: time.Now().Add(ttl)}
	c.items[key] = c.order.PushFront(e)
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.liveEntryLocked(key)
	if e == nil {
		return ErrCacheMiss
	}
	c.order.MoveToFront(c.items[key])
	return assign(key, e.value, dest)
}

// assign copies a cached value into the caller's destination pointer.
func assign(key string, value, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("memory cache: %s holds %T, want string", key, value)
		}
		*d = s
	case *[]byte:
		b, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("memory cache: %s holds %T, want []byte", key, value)
		}
		*d = b
	case *interface{}:
		*d = value
	default:
		return fmt.Errorf("memory cache: unsupported dest type %T", dest)
	}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.removeLocked(key)
	}
	return nil
}

func (c *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.liveEntryLocked(key) != nil {
		return false, nil
	}
	e := &memoryEntry{key: key, value: "locked", expireAt: time.Now().Add(ttl)}
	c.items[key] = c.order.PushFront(e)
	return true, nil
}

func (c *MemoryCache) Unlock(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// Close stops the sweep goroutine. Idempotent.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// liveEntryLocked returns the entry for key if present and unexpired,
// dropping it if it has lapsed.
func (c *MemoryCache) liveEntryLocked(key string) *memoryEntry {
	el, ok := c.items[key]
	if !ok {
		return nil
	}
	e := el.Value.(*memoryEntry)
	if e.expired(time.Now()) {
		c.removeLocked(key)
		return nil
	}
	return e
}

func (c *MemoryCache) removeLocked(key string) {
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

func (c *MemoryCache) evictOldestLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.removeLocked(back.Value.(*memoryEntry).key)
}

func (c *MemoryCache) sweeper() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, el := range c.items {
				if el.Value.(*memoryEntry).expired(now) {
					c.removeLocked(key)
				}
			}
			c.mu.Unlock()
		}
	}
}
