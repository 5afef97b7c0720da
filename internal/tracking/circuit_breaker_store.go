package tracking

import (
	"context"

	"groundseg/internal/config"
	"groundseg/pkg/circuitbreaker"
	"groundseg/pkg/errors"
)

// CircuitBreakerStore guards a Store. Missing records and conflicts pass
// through the breaker without counting as backend failures.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Breaker
}

func NewCircuitBreakerStore(store Store, backend string, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.NewIfEnabled("tracking-"+backend, cfg),
	}
}

func (s *CircuitBreakerStore) Create(ctx context.Context, datastripID, bucket string, parentKey *string, name string) error {
	return s.run(ctx, datastripID, func() error {
		return s.store.Create(ctx, datastripID, bucket, parentKey, name)
	})
}

func (s *CircuitBreakerStore) UpdateTileComplete(ctx context.Context, datastripID string, tile TileInfo) error {
	return s.run(ctx, datastripID, func() error {
		return s.store.UpdateTileComplete(ctx, datastripID, tile)
	})
}

func (s *CircuitBreakerStore) Get(ctx context.Context, datastripID string) (*Record, error) {
	var record *Record
	err := s.run(ctx, datastripID, func() error {
		var err error
		record, err = s.store.Get(ctx, datastripID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// run keeps store errors as they are and turns a breaker rejection into a
// retryable store failure.
func (s *CircuitBreakerStore) run(ctx context.Context, datastripID string, fn func() error) error {
	err := s.cb.Run(ctx, fn)
	if err == nil || errors.IsStoreOperation(err) || errors.IsNotFound(err) {
		return err
	}
	return storeError(datastripID, err)
}

func (s *CircuitBreakerStore) State() string {
	return s.cb.State()
}
