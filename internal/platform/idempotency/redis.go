// Package idempotency records which externally keyed events have already
// been handled so redelivered callbacks are accepted without side effects.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store claims keys for a bounded time.
type Store interface {
	// Claim returns true when key was not claimed before.
	Claim(ctx context.Context, key string) (bool, error)
	// Release drops a claim so the key can be handled again.
	Release(ctx context.Context, key string) error
}

// RedisStore implements Store with SET NX.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a RedisStore. Keys are namespaced with keyPrefix.
func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %q: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release %q: %w", key, err)
	}
	return nil
}

// NopStore treats every key as new. Used when no redis is configured.
type NopStore struct{}

func (NopStore) Claim(context.Context, string) (bool, error) { return true, nil }
func (NopStore) Release(context.Context, string) error      { return nil }
