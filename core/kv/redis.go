package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production Store, backed by go-redis. Construction
// takes a redis.Options subtree, passed straight through to redis.NewClient.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials a redis.Client from opts. The connection isn't tested
// here; the first Get/Set/Incr call surfaces a dial error.
func NewRedisStore(opts *redis.Options) *RedisStore {
	return &RedisStore{client: redis.NewClient(opts)}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("dispatchmux: redis get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("dispatchmux: redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("dispatchmux: redis setex %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("dispatchmux: redis incr %q: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
