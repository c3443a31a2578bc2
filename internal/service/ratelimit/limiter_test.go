package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterExhaustsBucket(t *testing.T) {
	l := New()

	// no refill: exactly capacity tokens are spendable
	if !l.Allow("k", 2, 0) || !l.Allow("k", 2, 0) {
		t.Fatalf("tokens within capacity were denied")
	}
	if l.Allow("k", 2, 0) {
		t.Fatalf("empty bucket still allowed a token")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New()

	if !l.Allow("a", 1, 0) {
		t.Fatalf("first token for a denied")
	}
	if l.Allow("a", 1, 0) {
		t.Fatalf("a should be empty")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("b shares a's bucket")
	}
}

func TestLimiterRefillsOverTime(t *testing.T) {
	l := New()

	if !l.Allow("k", 1, 1000) {
		t.Fatalf("first token denied")
	}
	if l.Allow("k", 1, 1000) {
		t.Fatalf("bucket should be empty right after the first take")
	}
	time.Sleep(50 * time.Millisecond)
	if !l.Allow("k", 1, 1000) {
		t.Fatalf("bucket never refilled")
	}
}

func TestLimiterSweepsIdleKeys(t *testing.T) {
	l := New()
	l.Allow("stale", 1, 0)

	l.mu.Lock()
	l.m["stale"].last = time.Now().Add(-idleAfter)
	l.lastSweep = time.Now().Add(-sweepInterval)
	l.mu.Unlock()

	l.Allow("fresh", 1, 0)

	l.mu.Lock()
	_, ok := l.m["stale"]
	n := len(l.m)
	l.mu.Unlock()
	if ok {
		t.Fatalf("idle key survived the sweep")
	}
	if n != 1 {
		t.Fatalf("tracked keys = %d, want just the fresh one", n)
	}
}
