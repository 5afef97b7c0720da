package output

import (
	"context"
	"strconv"

	"groundseg/internal/broker"
	"groundseg/internal/logger"
	"groundseg/internal/tracking"
	"groundseg/pkg/errors"
	"groundseg/pkg/logging"
	"groundseg/pkg/metrics"
	"groundseg/pkg/models"
	"groundseg/pkg/obs"
)

// Signaler publishes the tracking state of a datastrip after every change.
type Signaler struct {
	store     tracking.Store
	evaluator *CompletionEvaluator
	producer  broker.Producer
	topic     string
	source    string
	logger    logger.Logger
}

func NewSignaler(store tracking.Store, evaluator *CompletionEvaluator, producer broker.Producer, topic, source string, log logger.Logger) *Signaler {
	return &Signaler{
		store:     store,
		evaluator: evaluator,
		producer:  producer,
		topic:     topic,
		source:    source,
		logger:    log,
	}
}

func (s *Signaler) Signal(ctx context.Context, datastripID string, family models.ProductFamily) error {
	record, err := s.store.Get(ctx, datastripID)
	if err != nil {
		return err
	}

	dsFamily := family.DatastripFamily()
	complete, err := s.evaluator.Complete(ctx, record, dsFamily)
	if err != nil {
		return errors.ErrInternal.WithCause(err).WithDetail(errors.DetailDatastripID, datastripID)
	}

	msg := s.signalMessage(ctx, record, dsFamily, complete)
	if err := s.producer.Publish(ctx, s.topic, msg); err != nil {
		return err
	}
	metrics.IncSignalPublished(string(dsFamily), complete)

	s.logger.InfowCtx(ctx, "Published tracking signal",
		"datastrip_id", datastripID,
		"tile_count", record.TileCount(),
		"provisional", record.Provisional,
		"complete", complete,
	)
	return nil
}

func (s *Signaler) signalMessage(ctx context.Context, record *tracking.Record, family models.ProductFamily, complete bool) models.ProcessingMessage {
	var storagePath, key string
	if !record.Provisional {
		parentKey := ""
		if record.ParentKey != nil {
			parentKey = *record.ParentKey
		}
		key = obs.ToKey(parentKey, record.Name)
		storagePath = obs.ToURL(record.Bucket, parentKey, record.Name)
	}
	if key == "" {
		key = record.DatastripID
	}

	msg := models.NewProcessingMessage(family, storagePath, key)
	msg.Source = s.source
	msg.SetMetadata(models.DatastripIDField, record.DatastripID)
	msg.SetMetadata(models.TileCountField, strconv.Itoa(record.TileCount()))
	msg.SetMetadata(models.ProvisionalField, strconv.FormatBool(record.Provisional))
	msg.SetMetadata(models.CompleteField, strconv.FormatBool(complete))
	if correlationID := logging.GetCorrelationID(ctx); correlationID != "" {
		msg.SetMetadata(models.CorrelationIDField, correlationID)
	}
	msg.SetAdditionalField("tiles", record.TileIDs())
	return msg
}
