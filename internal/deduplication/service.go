// Package deduplication guards the preparation worker against redelivered
// notifications. A notification is claimed in Redis before it is handled;
// the claim is released when handling fails so the broker's redelivery is
// processed again instead of being swallowed.
package deduplication

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"groundseg/internal/broker"
	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/logger"
	"groundseg/pkg/metrics"
	"groundseg/pkg/models"
	"groundseg/pkg/tracing"
)

// DefaultFieldsToHash identifies an artifact by what it is and where it is.
var DefaultFieldsToHash = []string{"product_family", "storage_path"}

const cacheMetricsInterval = 30 * time.Second

type Service struct {
	repo         Repository
	hasher       *Hasher
	cfg          config.DeduplicationConfig
	fieldsToHash []string
	logger       logger.Logger

	cancelMetrics context.CancelFunc
	metricsDone   chan struct{}
	stopOnce      sync.Once
}

func NewService(repo Repository, cfg config.DeduplicationConfig, log logger.Logger) *Service {
	fieldsToHash := cfg.FieldsToHash
	if len(fieldsToHash) == 0 {
		fieldsToHash = DefaultFieldsToHash
		log.Infow("No fields_to_hash configured, using defaults", "fields", fieldsToHash)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		repo:          repo,
		hasher:        NewHasher(cfg.HashAlgorithm),
		cfg:           cfg,
		fieldsToHash:  append([]string(nil), fieldsToHash...),
		logger:        log,
		cancelMetrics: cancel,
		metricsDone:   make(chan struct{}),
	}

	go s.updateCacheSizeMetrics(ctx)

	return s
}

func fieldValues(msg *models.ProcessingMessage) map[string]string {
	values := make(map[string]string, len(msg.Metadata)+5)
	for k, v := range msg.Metadata {
		values[k] = v
	}
	values["id"] = msg.ID
	values["source"] = msg.Source
	values["product_family"] = string(msg.ProductFamily)
	values["storage_path"] = msg.StoragePath
	values["key_object_storage"] = msg.KeyObjectStorage
	return values
}

func (s *Service) key(msg *models.ProcessingMessage) (string, error) {
	hash, err := s.hasher.ComputeHash(fieldValues(msg), s.fieldsToHash)
	if err != nil {
		return "", fmt.Errorf("failed to compute hash for message %s: %w", msg.ID, err)
	}
	return constants.CacheKeyPrefixDedup + hash, nil
}

// Claim reports whether msg should be handled. A false result with no error
// means another delivery holds the claim.
func (s *Service) Claim(ctx context.Context, msg models.ProcessingMessage) (bool, error) {
	ctx, span := tracing.GetTracer("dedup-guard").Start(ctx, "deduplication.claim")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	key, err := s.key(&msg)
	if err != nil {
		return false, err
	}

	start := time.Now()
	claimed, err := s.repo.Claim(ctx, key, time.Now().Unix(), time.Duration(s.cfg.TTLSeconds)*time.Second)
	duration := time.Since(start)

	if err != nil {
		return s.handleRedisError(ctx, err, duration, msg.ID)
	}

	status := "duplicate"
	if claimed {
		status = "claimed"
	}
	s.recordMetrics(duration, status)
	return claimed, nil
}

// Release drops the claim on msg.
func (s *Service) Release(ctx context.Context, msg models.ProcessingMessage) error {
	key, err := s.key(&msg)
	if err != nil {
		return err
	}
	return s.repo.Release(ctx, key)
}

// Middleware returns Wrap, or nil when the guard is disabled.
func (s *Service) Middleware() broker.Middleware {
	if s == nil {
		return nil
	}
	return s.Wrap
}

// Wrap guards next. Duplicates are acknowledged without calling next; a
// failed next releases the claim before its error is returned.
func (s *Service) Wrap(next broker.HandlerFunc) broker.HandlerFunc {
	return func(ctx context.Context, msg models.ProcessingMessage) error {
		claimed, err := s.Claim(ctx, msg)
		if err != nil {
			return err
		}
		if !claimed {
			s.logger.InfowCtx(ctx, "Skipping redelivered notification",
				"message_id", msg.ID,
				"storage_path", msg.StoragePath,
			)
			return nil
		}

		if err := next(ctx, msg); err != nil {
			if releaseErr := s.Release(context.WithoutCancel(ctx), msg); releaseErr != nil {
				s.logger.WarnwCtx(ctx, "Failed to release redelivery claim",
					"message_id", msg.ID,
					"error", releaseErr,
				)
			}
			return err
		}
		return nil
	}
}

func (s *Service) handleRedisError(ctx context.Context, err error, duration time.Duration, msgID string) (bool, error) {
	s.recordMetrics(duration, "error")

	switch strings.ToLower(s.cfg.OnRedisError) {
	case constants.FallbackAllow:
		s.logger.WarnwCtx(ctx, "Redis error during redelivery check, allowing message (fallback: allow)",
			"message_id", msgID,
			"error", err,
		)
		return true, nil
	case constants.FallbackReject:
		s.logger.WarnwCtx(ctx, "Redis error during redelivery check, dropping message (fallback: reject)",
			"message_id", msgID,
			"error", err,
		)
		return false, nil
	default:
		return false, fmt.Errorf("redis error during redelivery check for message %s: %w", msgID, err)
	}
}

func (s *Service) recordMetrics(duration time.Duration, status string) {
	metrics.DedupMessagesTotal.WithLabelValues(status).Inc()
	metrics.ObserveDedupDuration(duration, status)
}

func (s *Service) updateCacheSizeMetrics(ctx context.Context) {
	defer close(s.metricsDone)

	ticker := time.NewTicker(cacheMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			size, err := s.repo.Count(ctx, constants.CacheKeyPrefixDedup)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Debugw("Failed to get cache size for metrics",
					"error", err,
				)
				continue
			}
			metrics.SetDedupCacheSize(size)
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the cache size updater and waits for it to exit.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.cancelMetrics()
		<-s.metricsDone
	})
}
