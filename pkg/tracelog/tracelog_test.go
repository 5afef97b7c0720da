package tracelog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"groundseg/pkg/logging"
)

func newObserved() (*TraceLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core), "test-service"), logs
}

func TestTask_End(t *testing.T) {
	tl, logs := newObserved()

	ctx := logging.WithTraceID(context.Background(), "trace-1")
	task := tl.Begin(ctx, "manage_input", zap.String("key", "DS"))
	task.End(zap.String("branch", "datastrip"))

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "trace", entries[0].LoggerName)
	assert.Equal(t, StatusBegin, entries[0].ContextMap()["status"])
	assert.Equal(t, "trace-1", entries[0].ContextMap()["trace_id"])
	assert.Equal(t, StatusEnd, entries[1].ContextMap()["status"])
	assert.Equal(t, "datastrip", entries[1].ContextMap()["branch"])
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestTask_Fail(t *testing.T) {
	tl, logs := newObserved()

	task := tl.Begin(context.Background(), "manage_input")
	task.Fail(errors.New("store down"))

	require.Equal(t, 2, logs.Len())
	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, StatusError, errs[0].ContextMap()["status"])
	assert.Equal(t, "store down", errs[0].ContextMap()["error"])
}

func TestTask_SecondTerminalCallIgnored(t *testing.T) {
	tl, logs := newObserved()

	task := tl.Begin(context.Background(), "manage_input")
	task.Fail(errors.New("first"))
	task.End()
	task.Fail(errors.New("second"))

	assert.Equal(t, 2, logs.Len())
}

func TestFromLogger_Nil(t *testing.T) {
	tl := FromLogger(nil, "svc")
	task := tl.Begin(context.Background(), "noop")
	task.End()
}
