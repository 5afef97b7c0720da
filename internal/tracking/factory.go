package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/pkg/metrics"
)

// Backends carries the connections a store may be built on. Only the one
// selected by tracking.backend needs to be set.
type Backends struct {
	Redis    redis.UniversalClient
	Postgres *sql.DB
	Mongo    *mongo.Database
}

// New builds the configured store, wrapped with metrics and, when enabled,
// a circuit breaker. The memory backend is never wrapped by the breaker.
func New(cfg config.TrackingConfig, cbCfg config.CircuitBreakerConfig, b Backends) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = constants.BackendMemory
	}

	var store Store
	switch backend {
	case constants.BackendMemory:
		return NewInstrumentedStore(NewMemoryStore(), backend), nil
	case constants.BackendRedis:
		if b.Redis == nil {
			return nil, fmt.Errorf("redis tracking backend requires a redis client")
		}
		prefix := cfg.KeyPrefix
		if prefix == "" {
			prefix = constants.CacheKeyPrefixTracking
		}
		store = NewRedisStore(b.Redis, prefix)
	case constants.BackendPostgres:
		if b.Postgres == nil {
			return nil, fmt.Errorf("postgres tracking backend requires a database")
		}
		store = NewPostgresStore(b.Postgres)
	case constants.BackendMongoDB:
		if b.Mongo == nil {
			return nil, fmt.Errorf("mongodb tracking backend requires a database")
		}
		collection := cfg.MongoCollection
		if collection == "" {
			collection = constants.DefaultMongoCollection
		}
		store = NewMongoStore(b.Mongo, collection)
	default:
		return nil, fmt.Errorf("unknown tracking backend: %s", backend)
	}

	return NewInstrumentedStore(NewCircuitBreakerStore(store, backend, cbCfg), backend), nil
}

// InstrumentedStore records operation counts and latencies per backend.
type InstrumentedStore struct {
	store   Store
	backend string
}

func NewInstrumentedStore(store Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{store: store, backend: backend}
}

func (s *InstrumentedStore) Create(ctx context.Context, datastripID, bucket string, parentKey *string, name string) error {
	start := time.Now()
	err := s.store.Create(ctx, datastripID, bucket, parentKey, name)
	s.observe("create", start, err)
	return err
}

func (s *InstrumentedStore) UpdateTileComplete(ctx context.Context, datastripID string, tile TileInfo) error {
	start := time.Now()
	err := s.store.UpdateTileComplete(ctx, datastripID, tile)
	s.observe("update_tile", start, err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, datastripID string) (*Record, error) {
	start := time.Now()
	record, err := s.store.Get(ctx, datastripID)
	s.observe("get", start, err)
	return record, err
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncTrackingStoreOperation(s.backend, operation, status)
	metrics.ObserveTrackingStoreDuration(s.backend, operation, time.Since(start))
}
