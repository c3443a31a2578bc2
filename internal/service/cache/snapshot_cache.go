package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	drepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	pkgcache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/cache"
)

// SnapshotCache keeps the latest AnalysisSnapshot per (symbol, timeframe) in
// the generic cache service. The analysis pipeline writes after every
// completed cycle; the reporting API reads.
type SnapshotCache struct {
	svc pkgcache.Service
	ttl time.Duration
}

// NewSnapshotCache creates a snapshot cache with the given entry TTL.
// ttl <= 0 means entries live until overwritten or evicted by the backend.
func NewSnapshotCache(svc pkgcache.Service, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{svc: svc, ttl: ttl}
}

// Put stores snap as the current snapshot for its (symbol, timeframe).
func (c *SnapshotCache) Put(ctx context.Context, snap *models.AnalysisSnapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot nil")
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := pkgcache.GenerateKeyWithParams("snapshot", snap.Symbol, string(snap.Timeframe))
	if err := c.svc.Set(ctx, key, string(b), c.ttl); err != nil {
		return fmt.Errorf("cache snapshot %s/%s: %w", snap.Symbol, snap.Timeframe, err)
	}
	return nil
}

// Invalidate drops the cached snapshot for (symbol, timeframe). Absent keys
// are not an error.
func (c *SnapshotCache) Invalidate(ctx context.Context, symbol string, tf drepo.Timeframe) error {
	key := pkgcache.GenerateKeyWithParams("snapshot", symbol, string(tf))
	return c.svc.Delete(ctx, key)
}

// Latest returns the cached snapshot for (symbol, timeframe). ok is false on
// a clean miss.
func (c *SnapshotCache) Latest(ctx context.Context, symbol string, tf drepo.Timeframe) (*models.AnalysisSnapshot, bool, error) {
	key := pkgcache.GenerateKeyWithParams("snapshot", symbol, string(tf))
	var raw string
	if err := c.svc.Get(ctx, key, &raw); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var snap models.AnalysisSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, false, fmt.Errorf("unmarshal snapshot %s/%s: %w", symbol, tf, err)
	}
	return &snap, true, nil
}
