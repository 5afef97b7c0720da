package deduplication

import (
	"context"
	"time"

	"groundseg/internal/config"
	"groundseg/pkg/circuitbreaker"
)

type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Breaker
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewIfEnabled("redelivery-guard", cfg),
	}
}

func (r *CircuitBreakerRepository) Claim(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	var claimed bool
	err := r.cb.Run(ctx, func() error {
		var err error
		claimed, err = r.repo.Claim(ctx, key, value, ttl)
		return err
	})
	return claimed && err == nil, err
}

func (r *CircuitBreakerRepository) Release(ctx context.Context, key string) error {
	return r.cb.Run(ctx, func() error {
		return r.repo.Release(ctx, key)
	})
}

func (r *CircuitBreakerRepository) Count(ctx context.Context, prefix string) (int, error) {
	var size int
	err := r.cb.Run(ctx, func() error {
		var err error
		size, err = r.repo.Count(ctx, prefix)
		return err
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}

func (r *CircuitBreakerRepository) State() string {
	return r.cb.State()
}

func (r *CircuitBreakerRepository) IsOpen() bool {
	return r.cb.IsOpen()
}
