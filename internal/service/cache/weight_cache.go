package cache

import (
	"sync"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

// WeightCache holds the active WeightSet in memory. Scoring passes read a
// cloned snapshot so a concurrent retrain activation never changes weights
// mid-pass; activation is the single writer.
type WeightCache struct {
	mu     sync.RWMutex
	active models.WeightSet
	loaded bool
}

func NewWeightCache() *WeightCache {
	return &WeightCache{}
}

// Activate installs ws as the active set.
func (c *WeightCache) Activate(ws models.WeightSet) {
	cloned := ws.Clone()
	c.mu.Lock()
	c.active = cloned
	c.loaded = true
	c.mu.Unlock()
}

// Active returns a stable copy of the active set. ok is false until the
// first Activate.
func (c *WeightCache) Active() (models.WeightSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return models.WeightSet{}, false
	}
	return c.active.Clone(), true
}

// Version returns the active version, 0 when nothing is loaded.
func (c *WeightCache) Version() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active.Version
}
