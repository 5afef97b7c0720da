package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"groundseg/internal/config"
	"groundseg/pkg/logging"
)

func TestKafkaHeaderPropagation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, parent := tp.Tracer("test").Start(context.Background(), "publish")
	ctx = logging.WithCorrelationID(ctx, "corr-1")
	ctx = logging.WithDatastripID(ctx, "DS_1")
	headers := InjectHeaders(ctx, []kafka.Header{{Key: "other", Value: []byte("x")}})
	parent.End()

	keys := (&headerCarrier{headers: headers}).Keys()
	assert.ElementsMatch(t, []string{"other", "traceparent", CorrelationIDHeader, DatastripIDHeader}, keys)

	msgCtx, child := StartConsumerSpan(context.Background(), kafka.Message{Topic: "s2-l1-notifications", Headers: headers})
	child.End()

	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.Equal(t, "corr-1", logging.GetCorrelationID(msgCtx))
	assert.Equal(t, "DS_1", logging.GetDatastripID(msgCtx))

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "kafka.consume s2-l1-notifications", ended[1].Name())
}

func TestExtractHeaders_Empty(t *testing.T) {
	ctx := ExtractHeaders(context.Background(), nil)
	assert.Empty(t, logging.GetCorrelationID(ctx))
	assert.Empty(t, logging.GetDatastripID(ctx))
}

func TestEndSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := StartSpan(context.Background(), "test", "manage_input", "DS_1", "S2_L1C_DS")
	EndSpan(span, errors.New("boom"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "manage_input", ended[0].Name())
	assert.Len(t, ended[0].Events(), 1)
	assert.Len(t, ended[0].Attributes(), 2)
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(config.TracingConfig{Enabled: false}, "svc")
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}
