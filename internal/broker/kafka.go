package broker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/logger"
	"groundseg/pkg/errors"
	"groundseg/pkg/logging"
	"groundseg/pkg/metrics"
	"groundseg/pkg/models"
	"groundseg/pkg/retry"
	"groundseg/pkg/tracing"
)

// Keys added to AdditionalFields when a message is parked on the DLQ.
const (
	DLQReasonField      = "dlq_reason"
	DLQSourceTopicField = "dlq_source_topic"
	DLQTimestampField   = "dlq_timestamp"
)

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, serviceName string, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: serviceName}
}

// Publish writes msg keyed by its storage path so that every notification
// about the same file lands on the same partition.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg models.ProcessingMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := msg.StoragePath
	if key == "" {
		key = msg.ID
	}

	headers := tracing.InjectHeaders(ctx, nil)

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(key),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	metrics.ObserveKafkaWriteDuration(p.serviceName, topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(p.serviceName, topic)
	metrics.ObserveKafkaMessageSize(p.serviceName, topic, "out", len(body))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// fetchBackoff is the pause after a failed fetch.
const fetchBackoff = time.Second

// KafkaConsumer reads one topic in a consumer group. Offsets are committed
// once a message is handled, dead-lettered or found undecodable, so a
// message is never redelivered after a final decision.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	mu          sync.Mutex
	reader      *kafka.Reader
	done        chan struct{}
	logger      logger.Logger
	dlqProducer Producer
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}
	if cfg.DLQTopic != "" {
		consumer.dlqProducer = NewKafkaProducer(cfg, "dlq", log)
	}
	return consumer
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

// Consume blocks until ctx is done and returns ctx.Err().
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	done := make(chan struct{})
	defer close(done)

	c.mu.Lock()
	c.reader = reader
	c.done = done
	c.mu.Unlock()

	consumeCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
	)

	for {
		fetchStart := time.Now()
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(consumeCtx, "Stopped consuming", "topic", topic)
				return ctx.Err()
			}
			if stderrors.Is(err, io.EOF) {
				c.logger.InfowCtx(consumeCtx, "Reader closed", "topic", topic)
				return nil
			}
			c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message", "error", err, "topic", topic)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fetchBackoff):
			}
			continue
		}

		metrics.ObserveKafkaReadDuration(c.serviceName, topic, time.Since(fetchStart))
		metrics.IncKafkaMessagesRead(c.serviceName, topic)
		metrics.ObserveKafkaMessageSize(c.serviceName, topic, "in", len(m.Value))
		if m.HighWaterMark > 0 {
			metrics.SetKafkaConsumerLag(c.serviceName, topic, m.Partition, m.HighWaterMark-m.Offset-1)
		}

		c.handle(ctx, consumeCtx, m, topic, handler)
	}
}

func (c *KafkaConsumer) handle(ctx, consumeCtx context.Context, m kafka.Message, topic string, handler HandlerFunc) {
	var msg models.ProcessingMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		c.logger.ErrorwCtx(consumeCtx, "Failed to unmarshal message",
			"error", err,
			"topic", topic,
			"offset", m.Offset,
		)
		_ = c.reader.CommitMessages(ctx, m)
		return
	}

	msgCtx, span := tracing.StartConsumerSpan(ctx, m)
	defer span.End()

	if msg.TraceID != "" {
		msgCtx = logging.WithTraceID(msgCtx, msg.TraceID)
	}
	msgCtx = logging.WithMessageID(msgCtx, msg.ID)
	msgCtx = logging.WithServiceName(msgCtx, c.serviceName)

	var err error
	if vErr := models.ValidateProcessingMessage(&msg); vErr != nil {
		err = errors.ErrValidation.WithCause(vErr)
	} else {
		err = c.processMessageWithRetry(msgCtx, msg, handler, topic)
	}

	if err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to process message after retries",
			"error", err,
			"topic", topic,
		)
		if c.dlqProducer != nil && c.cfg.DLQTopic != "" {
			if dlqErr := c.sendToDLQ(msgCtx, msg, err, topic); dlqErr != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to send message to DLQ",
					"error", dlqErr,
					"topic", topic,
				)
			}
		} else {
			c.logger.WarnwCtx(msgCtx, "No DLQ configured, committing message to avoid blocking",
				"topic", topic,
			)
		}
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
			"error", err,
			"topic", topic,
		)
	}
}

// Close stops the reader and waits for Consume to return.
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	reader, done := c.reader, c.done
	c.mu.Unlock()

	var errs []error
	if reader != nil {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
		<-done
	}
	if c.dlqProducer != nil {
		if err := c.dlqProducer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (c *KafkaConsumer) retryPolicy() retry.Policy {
	policy := retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}

	if c.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.cfg.Retry.MaxAttempts
	}
	if c.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = c.cfg.Retry.Multiplier
	}
	if c.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime
	}
	return policy
}

// processMessageWithRetry redelivers msg to handler until it succeeds, the
// budget runs out or the handler returns a fatal error.
func (c *KafkaConsumer) processMessageWithRetry(ctx context.Context, msg models.ProcessingMessage, handler HandlerFunc, topic string) error {
	policy := c.retryPolicy()

	return retry.Do(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.FromPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", topic,
				)
			}
		}()
		return handler(ctx, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
}

func (c *KafkaConsumer) sendToDLQ(ctx context.Context, msg models.ProcessingMessage, originalErr error, sourceTopic string) error {
	msg.SetAdditionalField(DLQReasonField, originalErr.Error())
	msg.SetAdditionalField(DLQSourceTopicField, sourceTopic)
	msg.SetAdditionalField(DLQTimestampField, time.Now().UTC())

	err := c.dlqProducer.Publish(ctx, c.cfg.DLQTopic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	reason := "max_retries_exceeded"
	if errors.IsFatal(originalErr) {
		reason = "fatal"
	}
	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, sourceTopic, reason).Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", sourceTopic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", originalErr.Error(),
	)

	return nil
}
