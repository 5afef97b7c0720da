// Package inputmgmt decides what each file-arrival notification means for
// datastrip assembly: open a record, complete a tile, or nothing.
package inputmgmt

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"groundseg/internal/tracking"
	"groundseg/pkg/errors"
	"groundseg/pkg/logging"
	"groundseg/pkg/metrics"
	"groundseg/pkg/models"
	"groundseg/pkg/obs"
	"groundseg/pkg/tracelog"
	"groundseg/pkg/tracing"
)

const (
	taskName   = "manage_input"
	tracerName = "groundseg-inputmgmt"
)

// Signaler is told about every datastrip whose tracking state changed.
type Signaler interface {
	Signal(ctx context.Context, datastripID string, family models.ProductFamily) error
}

type Service struct {
	store    tracking.Store
	patterns *Patterns
	signaler Signaler
	trace    *tracelog.TraceLogger
}

type Option func(*Service)

func WithSignaler(signaler Signaler) Option {
	return func(s *Service) {
		s.signaler = signaler
	}
}

func NewService(store tracking.Store, patterns *Patterns, trace *tracelog.TraceLogger, opts ...Option) *Service {
	if trace == nil {
		trace = tracelog.New(nil, "")
	}
	s := &Service{
		store:    store,
		patterns: patterns,
		trace:    trace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ManageInput classifies msg, applies the matching store transition and
// returns a fresh correlation id. Every call writes exactly two trace
// entries: begin, then either end or error.
func (s *Service) ManageInput(ctx context.Context, msg models.ProcessingMessage) (uuid.UUID, error) {
	start := time.Now()
	correlationID := uuid.New()
	ctx = logging.WithCorrelationID(ctx, correlationID.String())

	hint, _ := msg.MetadataValue(models.DatastripIDField)
	ctx, span := tracing.StartSpan(ctx, tracerName, "input.manage", hint, string(msg.ProductFamily))
	task := s.trace.Begin(ctx, taskName,
		zap.String(logging.CorrelationIDKey, correlationID.String()),
		zap.String("product_family", string(msg.ProductFamily)),
		zap.String("storage_path", msg.StoragePath),
		zap.String("key", msg.KeyObjectStorage),
	)

	kind, datastripID, err := s.dispatch(ctx, &msg)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncInputMessage(string(msg.ProductFamily), kind.String(), status)
	metrics.ObserveInputDuration(time.Since(start), kind.String(), status)
	tracing.EndSpan(span, err)

	if err != nil {
		task.Fail(err,
			zap.String("branch", kind.String()),
			zap.String(logging.DatastripIDKey, datastripID),
		)
		return uuid.Nil, err
	}

	task.End(
		zap.String("branch", kind.String()),
		zap.String(logging.DatastripIDKey, datastripID),
	)
	return correlationID, nil
}

func (s *Service) dispatch(ctx context.Context, msg *models.ProcessingMessage) (Kind, string, error) {
	kind, err := Classify(msg, s.patterns)
	if err != nil {
		return kind, "", err
	}

	var datastripID string
	switch kind {
	case KindDatastrip:
		datastripID = datastripIDOf(msg)
		bucket, parentKey, name := descriptorLocation(msg)
		if err := s.store.Create(ctx, datastripID, bucket, parentKey, name); err != nil {
			return kind, datastripID, storeFailure(err, msg, datastripID)
		}
	case KindTile:
		id, ok := msg.MetadataValue(models.DatastripIDField)
		if !ok || id == "" {
			return kind, "", classificationError(msg, "tile notification without datastrip_id metadata")
		}
		datastripID = id
		tile := tracking.TileInfo{
			TileID:      tileIDOf(msg),
			StoragePath: msg.StoragePath,
		}
		if err := s.store.UpdateTileComplete(ctx, datastripID, tile); err != nil {
			return kind, datastripID, storeFailure(err, msg, datastripID)
		}
	default:
		return kind, "", nil
	}

	if s.signaler != nil {
		ctx = logging.WithDatastripID(ctx, datastripID)
		if err := s.signaler.Signal(ctx, datastripID, msg.ProductFamily); err != nil {
			return kind, datastripID, withMessageDetails(errors.ErrDispatch.WithCause(err), msg, datastripID)
		}
	}
	return kind, datastripID, nil
}

// datastripIDOf prefers the datastrip_id metadata and falls back to the
// descriptor's file name.
func datastripIDOf(msg *models.ProcessingMessage) string {
	if id, ok := msg.MetadataValue(models.DatastripIDField); ok && id != "" {
		return id
	}
	return obs.KeyToName(msg.KeyObjectStorage)
}

func tileIDOf(msg *models.ProcessingMessage) string {
	if id, ok := msg.MetadataValue(models.TileIDField); ok && id != "" {
		return id
	}
	return obs.KeyToName(msg.KeyObjectStorage)
}

func descriptorLocation(msg *models.ProcessingMessage) (bucket string, parentKey *string, name string) {
	bucket, key := obs.Decompose(msg.StoragePath)
	if key == "" {
		key = msg.KeyObjectStorage
	}
	if pk, ok := obs.KeyToParentKey(key); ok {
		parentKey = &pk
	}
	return bucket, parentKey, obs.KeyToName(key)
}

// storeFailure keeps a store error's code and retry class, wrapping
// anything else as a retryable store failure.
func storeFailure(err error, msg *models.ProcessingMessage, datastripID string) error {
	var appErr *errors.Error
	if !stderrors.As(err, &appErr) || !errors.IsStoreOperation(appErr) {
		appErr = errors.ErrStoreOperation.WithCause(err)
	}
	return withMessageDetails(appErr, msg, datastripID)
}

func withMessageDetails(err *errors.Error, msg *models.ProcessingMessage, datastripID string) *errors.Error {
	err = err.
		WithDetail(errors.DetailProductFamily, string(msg.ProductFamily)).
		WithDetail(errors.DetailStoragePath, msg.StoragePath).
		WithDetail(errors.DetailKey, msg.KeyObjectStorage)
	if datastripID != "" {
		err = err.WithDetail(errors.DetailDatastripID, datastripID)
	}
	return err
}
