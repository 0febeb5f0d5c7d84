package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CallbackDedupe implements ports.CallbackDedupe using Redis SET NX.
// Providers redeliver webhooks on any non-2xx or slow response, so every
// delivery key is recorded before processing starts.
type CallbackDedupe struct {
	client *goredis.Client
	prefix string
}

// NewCallbackDedupe creates a new Redis-backed callback dedupe store.
func NewCallbackDedupe(client *goredis.Client) *CallbackDedupe {
	return &CallbackDedupe{
		client: client,
		prefix: "callback:",
	}
}

// CheckAndSet atomically records a delivery key, setting it if absent.
// Returns true when the delivery is new, false when already seen.
func (s *CallbackDedupe) CheckAndSet(ctx context.Context, provider, ref string, ttl time.Duration) (bool, error) {
	key := s.prefix + provider + ":" + ref
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, delivery was already processed
			return false, nil
		}
		return false, fmt.Errorf("redis callback dedupe: %w", err)
	}
	return result == "OK", nil
}
