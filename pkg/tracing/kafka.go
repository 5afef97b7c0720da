package tracing

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"groundseg/pkg/logging"
)

// Header names carrying correlation hints next to the W3C trace context.
const (
	CorrelationIDHeader = "x-correlation-id"
	DatastripIDHeader   = "x-datastrip-id"
)

const kafkaTracerName = "groundseg-kafka"

// headerCarrier adapts kafka headers to propagation.TextMapCarrier. It is
// used through a pointer so that Set can grow the slice.
type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range c.headers {
		if h.Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectHeaders adds the trace context of ctx and its correlation and
// datastrip ids to headers.
func InjectHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	if id := logging.GetCorrelationID(ctx); id != "" {
		carrier.Set(CorrelationIDHeader, id)
	}
	if id := logging.GetDatastripID(ctx); id != "" {
		carrier.Set(DatastripIDHeader, id)
	}
	return carrier.headers
}

// ExtractHeaders restores what InjectHeaders wrote into a new context.
func ExtractHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := &headerCarrier{headers: headers}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	if id := carrier.Get(CorrelationIDHeader); id != "" {
		ctx = logging.WithCorrelationID(ctx, id)
	}
	if id := carrier.Get(DatastripIDHeader); id != "" {
		ctx = logging.WithDatastripID(ctx, id)
	}
	return ctx
}

// StartConsumerSpan continues the producer's trace for m.
func StartConsumerSpan(ctx context.Context, m kafka.Message) (context.Context, trace.Span) {
	ctx = ExtractHeaders(ctx, m.Headers)
	return GetTracer(kafkaTracerName).Start(ctx, "kafka.consume "+m.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", m.Topic),
			attribute.Int("messaging.kafka.partition", m.Partition),
			attribute.String("messaging.kafka.offset", strconv.FormatInt(m.Offset, 10)),
		),
	)
}
