package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOption configures a RedisCache.
type RedisOption func(*redisConfig)

type redisConfig struct {
	addr      string
	password  string
	db        int
	poolSize  int
	minIdle   int
	namespace string
}

// WithRedisAddr sets the host:port address.
func WithRedisAddr(addr string) RedisOption {
	return func(c *redisConfig) { c.addr = addr }
}

// WithRedisPassword sets the auth password.
func WithRedisPassword(pw string) RedisOption {
	return func(c *redisConfig) { c.password = pw }
}

// WithRedisDB selects the logical database.
func WithRedisDB(db int) RedisOption {
	return func(c *redisConfig) { c.db = db }
}

// WithRedisPool sizes the connection pool.
func WithRedisPool(size, minIdle int) RedisOption {
	return func(c *redisConfig) {
		c.poolSize = size
		c.minIdle = minIdle
	}
}

// WithRedisNamespace sets the prefix applied to every key, isolating this
// service from anything else sharing the Redis instance.
func WithRedisNamespace(ns string) RedisOption {
	return func(c *redisConfig) { c.namespace = ns }
}

// RedisCache implements Service on a Redis instance. Values round-trip
// through JSON unless the caller passes raw bytes or strings.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	cfg := &redisConfig{
		addr:      "localhost:6379",
		poolSize:  10,
		minIdle:   2,
		namespace: "smsent",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.addr,
		Password:     cfg.password,
		DB:           cfg.db,
		PoolSize:     cfg.poolSize,
		MinIdleConns: cfg.minIdle,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{client: client, namespace: cfg.namespace}, nil
}

// Client exposes the underlying go-redis client for callers that need
// primitives beyond the Service contract.
func (c *RedisCache) Client() *redis.Client { return c.client }

// Close releases the connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) rkey(key string) string {
	return c.namespace + ":" + key
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := encodePayload(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.rkey(key), payload, ttl).Err()
}

func encodePayload(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode cache value: %w", err)
		}
		return b, nil
	}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.client.Get(ctx, c.rkey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	switch d := dest.(type) {
	case *[]byte:
		*d = raw
		return nil
	case *string:
		*d = string(raw)
		return nil
	default:
		return json.Unmarshal(raw, dest)
	}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = c.rkey(k)
	}
	// UNLINK reclaims memory off the command path
	return c.client.Unlink(ctx, namespaced...).Err()
}

func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.rkey(key), time.Now().UnixNano(), ttl).Result()
}

func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.rkey(key)).Err()
}
