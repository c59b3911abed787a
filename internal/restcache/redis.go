package restcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores rest-timer slots in Redis. Each key expires when its
// timer would have run out, so an abandoned slot never outlives its rest.
type RedisCache struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisFromClient(client, cfg.Prefix), nil
}

// NewRedisFromClient wraps an existing client. Used with miniredis in tests.
func NewRedisFromClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, now: time.Now}
}

// Get returns the slot for key, or nil if empty or expired.
func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rest timer: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal rest timer: %w", err)
	}
	return &e, nil
}

// Set overwrites the slot for key. An entry already in the past is cleared instead.
func (c *RedisCache) Set(ctx context.Context, key string, e Entry) error {
	ttl := e.EndsAt.Sub(c.now())
	if ttl <= 0 {
		return c.Clear(ctx, key)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal rest timer: %w", err)
	}
	// Round up so the key never expires before the last whole second is observed.
	ttl = ttl.Truncate(time.Second) + time.Second
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set rest timer: %w", err)
	}
	return nil
}

// Clear empties the slot for key.
func (c *RedisCache) Clear(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("clear rest timer: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
