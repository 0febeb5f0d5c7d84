package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PlanCache implements ports.PlanCache using Redis. Plan catalogs change
// rarely, so listings are cached to spare the aggregator.
type PlanCache struct {
	client *goredis.Client
	prefix string
}

// NewPlanCache creates a new Redis-backed plan cache.
func NewPlanCache(client *goredis.Client) *PlanCache {
	return &PlanCache{
		client: client,
		prefix: "plans:",
	}
}

// Get retrieves a cached plan listing by key.
// Returns nil, nil if the key does not exist.
func (c *PlanCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis plan get: %w", err)
	}
	return val, nil
}

// Set stores a plan listing with TTL.
func (c *PlanCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis plan set: %w", err)
	}
	return nil
}
