package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"intent-payment-gateway/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache using Redis.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "idempotency:",
	}
}

// Begin looks up a previously committed response for the key.
// Returns nil, nil on a MISS; the caller then executes and commits.
func (c *IdempotencyCache) Begin(ctx context.Context, key string) (*domain.CachedResponse, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}

	var cached domain.CachedResponse
	if err := json.Unmarshal(val, &cached); err != nil {
		return nil, fmt.Errorf("redis idempotency decode: %w", err)
	}
	return &cached, nil
}

// Commit stores a completed response under the key with TTL.
func (c *IdempotencyCache) Commit(ctx context.Context, key string, statusCode int, body []byte, ttl time.Duration) error {
	val, err := json.Marshal(domain.CachedResponse{StatusCode: statusCode, Body: body})
	if err != nil {
		return fmt.Errorf("redis idempotency encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}
