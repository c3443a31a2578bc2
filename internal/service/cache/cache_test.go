package cache

import (
	"context"
	"testing"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	drepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	pkgcache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/cache"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()

	if err := c.SetBytes(ctx, "k", []byte("payload"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := c.GetBytes(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(b) != "payload" {
		t.Fatalf("got %q", b)
	}

	if _, ok, _ := c.GetBytes(ctx, "absent"); ok {
		t.Fatalf("absent key reported present")
	}
}

func TestTTLCacheExpiresKeys(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()

	if err := c.SetBytes(ctx, "short", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.SetBytes(ctx, "forever", []byte("y"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok, _ := c.GetBytes(ctx, "short"); ok {
		t.Fatalf("expired key still readable")
	}
	// zero TTL never expires
	if _, ok, _ := c.GetBytes(ctx, "forever"); !ok {
		t.Fatalf("zero-ttl key expired")
	}
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	sc := NewSnapshotCache(pkgcache.NewMemoryCache(), 0)

	if _, ok, err := sc.Latest(ctx, "BTCUSDT", drepo.TF1h); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	snap := &models.AnalysisSnapshot{
		Symbol:    "BTCUSDT",
		Timeframe: string(drepo.TF1h),
		AsOf:      time.Unix(1700000000, 0).UTC(),
		Candles:   240,
		LastClose: 64123.5,
		ATR:       310.2,
	}
	if err := sc.Put(ctx, snap); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := sc.Latest(ctx, "BTCUSDT", drepo.TF1h)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if got.LastClose != snap.LastClose || got.Candles != snap.Candles || !got.AsOf.Equal(snap.AsOf) {
		t.Fatalf("snapshot mangled: %+v", got)
	}

	// other timeframes are separate slots
	if _, ok, _ := sc.Latest(ctx, "BTCUSDT", drepo.TF1m); ok {
		t.Fatalf("1m slot shares the 1h entry")
	}
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	sc := NewSnapshotCache(pkgcache.NewMemoryCache(), 0)

	snap := &models.AnalysisSnapshot{Symbol: "ETHUSDT", Timeframe: string(drepo.TF5m), AsOf: time.Now()}
	if err := sc.Put(ctx, snap); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := sc.Invalidate(ctx, "ETHUSDT", drepo.TF5m); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := sc.Latest(ctx, "ETHUSDT", drepo.TF5m); ok {
		t.Fatalf("entry survived invalidation")
	}

	// invalidating an absent slot is a no-op
	if err := sc.Invalidate(ctx, "ETHUSDT", drepo.TF5m); err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
}

func TestWeightCacheActivateAndClone(t *testing.T) {
	wc := NewWeightCache()

	if _, ok := wc.Active(); ok {
		t.Fatalf("cold cache reported an active set")
	}
	if wc.Version() != 0 {
		t.Fatalf("cold version = %d, want 0", wc.Version())
	}

	ws := models.WeightSet{Version: 7, Weights: map[string]float64{"order_block": 2}}
	wc.Activate(ws)

	got, ok := wc.Active()
	if !ok || got.Version != 7 {
		t.Fatalf("active = %+v ok=%v", got, ok)
	}

	// readers get a private copy; mutating it must not leak back
	got.Weights["order_block"] = 99
	again, _ := wc.Active()
	if again.Weights["order_block"] != 2 {
		t.Fatalf("reader mutation leaked into the cache")
	}

	// the caller's map is also not aliased
	ws.Weights["order_block"] = -1
	final, _ := wc.Active()
	if final.Weights["order_block"] != 2 {
		t.Fatalf("activation aliased the caller's map")
	}
}
