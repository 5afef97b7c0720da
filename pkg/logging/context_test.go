package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := WithDatastripID(context.Background(), "DS_1")
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithCorrelationID(ctx, "corr-1")

	assert.Equal(t, []interface{}{
		TraceIDKey, "trace-1",
		CorrelationIDKey, "corr-1",
		DatastripIDKey, "DS_1",
	}, GetLogFields(ctx))
}

func TestGetLogFields_Empty(t *testing.T) {
	assert.Empty(t, GetLogFields(context.Background()))
	assert.Equal(t, "", GetMessageID(context.Background()))
}

func TestKeysDoNotCollideWithPlainStrings(t *testing.T) {
	//nolint:staticcheck
	ctx := context.WithValue(context.Background(), DatastripIDKey, "other")
	assert.Equal(t, "", GetDatastripID(ctx))
}
