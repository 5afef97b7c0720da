// Package logging carries request-scoped identifiers through a context so
// every log line of a message can be tied back to it.
package logging

import "context"

// Field names used both as log keys and as message header suffixes.
const (
	TraceIDKey       = "trace_id"
	MessageIDKey     = "message_id"
	ServiceNameKey   = "service_name"
	CorrelationIDKey = "correlation_id"
	DatastripIDKey   = "datastrip_id"
)

type ctxKey string

// logOrder is the order fields appear in a log line.
var logOrder = []string{TraceIDKey, MessageIDKey, ServiceNameKey, CorrelationIDKey, DatastripIDKey}

func with(ctx context.Context, key, value string) context.Context {
	return context.WithValue(ctx, ctxKey(key), value)
}

func get(ctx context.Context, key string) string {
	v, _ := ctx.Value(ctxKey(key)).(string)
	return v
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, TraceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return with(ctx, MessageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return with(ctx, ServiceNameKey, serviceName)
}

// WithCorrelationID ties every message derived from one notification
// together across workers.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return with(ctx, CorrelationIDKey, correlationID)
}

func WithDatastripID(ctx context.Context, datastripID string) context.Context {
	return with(ctx, DatastripIDKey, datastripID)
}

func GetTraceID(ctx context.Context) string       { return get(ctx, TraceIDKey) }
func GetMessageID(ctx context.Context) string     { return get(ctx, MessageIDKey) }
func GetServiceName(ctx context.Context) string   { return get(ctx, ServiceNameKey) }
func GetCorrelationID(ctx context.Context) string { return get(ctx, CorrelationIDKey) }
func GetDatastripID(ctx context.Context) string   { return get(ctx, DatastripIDKey) }

// GetLogFields returns the non-empty identifiers of ctx as alternating
// key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 2*len(logOrder))
	for _, key := range logOrder {
		if v := get(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}
	return fields
}
