package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss reports that a key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the shared cache contract. Implementations back it with local
// memory, Redis, or both layered; callers must treat entries as disposable.
//
// TryLock and Unlock provide a coarse cross-instance mutex (SETNX semantics)
// used to keep retrain cycles single-flight across replicas.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
