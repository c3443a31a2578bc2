package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got string
	if err := c.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Fatalf("got %q, want v", got)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	var got string
	if err := c.Get(context.Background(), "absent", &got); err != ErrCacheMiss {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var got string
	if err := c.Get(ctx, "k", &got); err != ErrCacheMiss {
		t.Fatalf("expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(WithMemoryLimit(3))
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.Set(ctx, fmt.Sprintf("k%d", i), "v", time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	// touch k0 so k1 becomes the oldest
	var s string
	if err := c.Get(ctx, "k0", &s); err != nil {
		t.Fatalf("get k0: %v", err)
	}

	if err := c.Set(ctx, "k3", "v", time.Minute); err != nil {
		t.Fatalf("set k3: %v", err)
	}

	if err := c.Get(ctx, "k1", &s); err != ErrCacheMiss {
		t.Fatalf("k1 should have been evicted, got %v", err)
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if err := c.Get(ctx, k, &s); err != nil {
			t.Errorf("%s should survive eviction: %v", k, err)
		}
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"a", "b", "keep"} {
		if err := c.Set(ctx, k, "v", time.Minute); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := c.Delete(ctx, "a", "b", "absent"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var s string
	for _, k := range []string{"a", "b"} {
		if err := c.Get(ctx, k, &s); err != ErrCacheMiss {
			t.Fatalf("%s should be gone, got %v", k, err)
		}
	}
	if err := c.Get(ctx, "keep", &s); err != nil {
		t.Fatalf("keep should survive: %v", err)
	}
}

func TestMemoryCacheTryLock(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first TryLock = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = c.TryLock(ctx, "lock", time.Minute)
	if err != nil || ok {
		t.Fatalf("second TryLock = (%v, %v), want (false, nil)", ok, err)
	}
	if err := c.Unlock(ctx, "lock"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = c.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("TryLock after Unlock = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	got := GenerateKeyWithParams("snapshot", "BTCUSDT", "5m")
	if got != "snapshot:BTCUSDT:5m" {
		t.Fatalf("got %q", got)
	}
}

func TestHashKeyIsStableAndBounded(t *testing.T) {
	a := HashKey("symbol=BTCUSDT&tf=5m&limit=100")
	b := HashKey("symbol=BTCUSDT&tf=5m&limit=100")
	if a != b {
		t.Fatal("same input must hash identically")
	}
	if len(a) != 16 {
		t.Fatalf("hash length = %d, want 16", len(a))
	}
	if HashKey("other") == a {
		t.Fatal("different inputs should not collide here")
	}
}
