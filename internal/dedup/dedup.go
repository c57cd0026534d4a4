// Package dedup records idempotency keys with a retention window so repeated
// submissions of the same logical work can be recognized across processes.
package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store claims idempotency keys. Claim returns true when the key was not held
// and is now recorded with value for ttl; otherwise it returns false and the
// value recorded by the first claimant.
type Store interface {
	Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, string, error)
	Release(ctx context.Context, key string) error
}

const keyPrefix = "sla:idem:"

type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by Redis SET NX with expiry.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, string, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, value, ttl).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, value, nil
	}
	existing, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as a duplicate of unknown origin
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return false, existing, nil
}

func (s *redisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
