// Package cache keeps a read-through copy of each owner's persisted section
// payload in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a cached payload may outlive a write made by
// another instance.
const DefaultTTL = 10 * time.Minute

// RedisCache stores raw section payloads keyed by owner.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, prefix: "arp:sections:", ttl: ttl}
}

func (c *RedisCache) key(ownerID string) string {
	return c.prefix + ownerID
}

// GetSections returns the cached payload of ownerID. A miss reports false
// with a nil error.
func (c *RedisCache) GetSections(ctx context.Context, ownerID string) (json.RawMessage, bool, error) {
	data, err := c.client.Get(ctx, c.key(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached sections: %w", err)
	}
	if !json.Valid(data) {
		_ = c.client.Del(ctx, c.key(ownerID)).Err()
		return nil, false, nil
	}
	return json.RawMessage(data), true, nil
}

func (c *RedisCache) PutSections(ctx context.Context, ownerID string, payload json.RawMessage) error {
	if err := c.client.Set(ctx, c.key(ownerID), []byte(payload), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache sections: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, ownerID string) error {
	if err := c.client.Del(ctx, c.key(ownerID)).Err(); err != nil {
		return fmt.Errorf("invalidate sections: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
