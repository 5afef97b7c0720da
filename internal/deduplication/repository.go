package deduplication

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// Repository stores redelivery claims. A claim is a key that exists until
// its TTL runs out or it is released.
type Repository interface {
	// Claim sets key only if it is absent and reports whether it did.
	Claim(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	// Count returns the number of live claims under prefix.
	Count(ctx context.Context, prefix string) (int, error)
}

type RedisRepository struct {
	client redis.UniversalClient
}

func NewRepository(client redis.UniversalClient) Repository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Claim(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	err := r.client.SetArgs(ctx, key, value, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	switch {
	case err == redis.Nil:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisRepository) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) Count(ctx context.Context, prefix string) (int, error) {
	iter := r.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	count := 0
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count claims under %s: %w", prefix, err)
	}
	return count, nil
}
