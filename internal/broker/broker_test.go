package broker

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundseg/internal/config"
	"groundseg/internal/logger"
	"groundseg/pkg/errors"
	"groundseg/pkg/models"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, msg models.ProcessingMessage) error {
				order = append(order, name)
				return next(ctx, msg)
			}
		}
	}

	h := Chain(func(context.Context, models.ProcessingMessage) error {
		order = append(order, "handler")
		return nil
	}, mw("first"), nil, mw("second"))

	require.NoError(t, h(context.Background(), models.ProcessingMessage{}))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestNew_UnknownType(t *testing.T) {
	_, _, err := New(config.BrokerConfig{Type: "rabbitmq"}, "test", logger.NopLogger())
	assert.ErrorContains(t, err, "rabbitmq")
}

func newTestConsumer() *KafkaConsumer {
	return NewKafkaConsumer(config.KafkaConfig{
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      2,
		},
	}, logger.NopLogger())
}

func TestProcessMessageWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		results   []error
		wantCalls int
		wantErr   bool
	}{
		{"first try", []error{nil}, 1, false},
		{"transient then success", []error{stderrors.New("broker busy"), nil}, 2, false},
		{"budget exhausted", []error{
			stderrors.New("a"), stderrors.New("b"), stderrors.New("c"), nil,
		}, 3, true},
		{"fatal stops at once", []error{errors.ErrValidation.WithMessage("bad"), nil}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConsumer()
			calls := 0
			err := c.processMessageWithRetry(context.Background(), models.ProcessingMessage{ID: "m"},
				func(context.Context, models.ProcessingMessage) error {
					res := tt.results[calls]
					calls++
					return res
				}, "topic")

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessMessageWithRetry_Panic(t *testing.T) {
	c := newTestConsumer()
	calls := 0
	err := c.processMessageWithRetry(context.Background(), models.ProcessingMessage{ID: "m"},
		func(context.Context, models.ProcessingMessage) error {
			calls++
			panic("processor exploded")
		}, "topic")

	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, 1, calls)
}

type recordingProducer struct {
	topic string
	msg   models.ProcessingMessage
}

func (p *recordingProducer) Publish(_ context.Context, topic string, msg models.ProcessingMessage) error {
	p.topic = topic
	p.msg = msg
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestSendToDLQ(t *testing.T) {
	c := newTestConsumer()
	c.cfg.DLQTopic = "dlq"
	dlq := &recordingProducer{}
	c.dlqProducer = dlq

	msg := models.NewProcessingMessage(models.FamilyL1CTile, "s3://b/TL", "TL")
	require.NoError(t, c.sendToDLQ(context.Background(), msg, stderrors.New("boom"), "tiles"))

	assert.Equal(t, "dlq", dlq.topic)
	reason, _ := dlq.msg.AdditionalField(DLQReasonField)
	source, _ := dlq.msg.AdditionalField(DLQSourceTopicField)
	assert.Equal(t, "boom", reason)
	assert.Equal(t, "tiles", source)
}
