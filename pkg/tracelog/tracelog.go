// Package tracelog records the audit trail of pipeline tasks.
//
// Every task produces exactly two entries on the "trace" logger: a begin
// entry when the task starts and either an end entry (info) or an error
// entry (error) when it finishes. Audit tooling downstream counts on that
// pairing, so a Task ignores any terminal call after the first one.
package tracelog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"groundseg/pkg/logging"
)

const loggerName = "trace"

// Status values written in the "status" field.
const (
	StatusBegin = "BEGIN"
	StatusEnd   = "END"
	StatusError = "ERROR"
)

type TraceLogger struct {
	logger  *zap.Logger
	service string
}

func New(base *zap.Logger, service string) *TraceLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &TraceLogger{
		logger:  base.Named(loggerName),
		service: service,
	}
}

// FromLogger reuses the core behind any logger exposing Desugar, which is
// the case for every logger.Logger implementation.
func FromLogger(l interface{ Desugar() *zap.Logger }, service string) *TraceLogger {
	if l == nil {
		return New(nil, service)
	}
	return New(l.Desugar(), service)
}

// Begin writes the begin entry of a task and returns the handle used to
// close it.
func (t *TraceLogger) Begin(ctx context.Context, task string, fields ...zap.Field) *Task {
	base := []zap.Field{
		zap.String("task", task),
		zap.String("service", t.service),
	}
	if traceID := logging.GetTraceID(ctx); traceID != "" {
		base = append(base, zap.String(logging.TraceIDKey, traceID))
	}
	if messageID := logging.GetMessageID(ctx); messageID != "" {
		base = append(base, zap.String(logging.MessageIDKey, messageID))
	}

	logger := t.logger.With(base...)
	logger.Info("task started", append([]zap.Field{zap.String("status", StatusBegin)}, fields...)...)

	return &Task{
		logger:  logger,
		started: time.Now(),
	}
}

type Task struct {
	logger  *zap.Logger
	started time.Time
	once    sync.Once
}

// End writes the completion entry.
func (t *Task) End(fields ...zap.Field) {
	t.once.Do(func() {
		t.logger.Info("task completed", t.closing(StatusEnd, fields)...)
	})
}

// Fail writes the error entry.
func (t *Task) Fail(err error, fields ...zap.Field) {
	t.once.Do(func() {
		t.logger.Error("task failed", t.closing(StatusError, append(fields, zap.Error(err)))...)
	})
}

func (t *Task) closing(status string, fields []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("status", status),
		zap.Int64("duration_ms", time.Since(t.started).Milliseconds()),
	}, fields...)
}
