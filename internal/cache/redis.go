package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time check: *RedisCache must satisfy ValidationCache.
var _ ValidationCache = (*RedisCache)(nil)

const redisKeyPrefix = "moneybee:apikey:"

// RedisCache shares validation verdicts across server instances.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (bool, bool, error) {
	value, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("cache get: %w", err)
	}
	return value == "1", true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, valid bool, ttl time.Duration) error {
	value := "0"
	if valid {
		value = "1"
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
