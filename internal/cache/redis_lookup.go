package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sms:provider:"

type RedisLookup struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLookup(rdb *redis.Client, ttl time.Duration) *RedisLookup {
	return &RedisLookup{rdb: rdb, ttl: ttl}
}

func key(providerID string) string {
	return keyPrefix + providerID
}

func (c *RedisLookup) Store(ctx context.Context, providerID, messageID string) error {
	if providerID == "" || messageID == "" {
		return fmt.Errorf("provider id and message id are required")
	}
	return c.rdb.Set(ctx, key(providerID), messageID, c.ttl).Err()
}

func (c *RedisLookup) Lookup(ctx context.Context, providerID string) (string, error) {
	id, err := c.rdb.Get(ctx, key(providerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Ping checks the connection at startup.
func (c *RedisLookup) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
