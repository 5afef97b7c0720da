package output

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundseg/internal/logger"
	"groundseg/internal/tracking"
	"groundseg/pkg/errors"
	"groundseg/pkg/logging"
	"groundseg/pkg/models"
)

type published struct {
	topic string
	msg   models.ProcessingMessage
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, msg models.ProcessingMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic, msg})
	return nil
}

func (p *fakeProducer) Close() error {
	return nil
}

func executionInput() models.ExecutionInput {
	return models.ExecutionInput{
		Satellite:  "S2B",
		Station:    "MTI_",
		Datastrip:  "DS_1",
		T0PdgsDate: time.Unix(0, 0).UTC(),
	}
}

func TestBuild_OneMessagePerFile(t *testing.T) {
	b := NewMessageBuilder("execution-worker", logger.NopLogger())

	files := map[models.ProductFamily][]models.FileInfo{
		models.FamilyL0Granule: {
			{ProductFamily: models.FamilyL0Granule, Bucket: "gr", Key: "GR_1", ObsURL: "s3://gr/GR_1"},
			{ProductFamily: models.FamilyL0Granule, Bucket: "gr", Key: "GR_2", ObsURL: "s3://gr/GR_2"},
		},
		models.FamilyL0Datastrip: {
			{ProductFamily: models.FamilyL0Datastrip, Bucket: "ds", Key: "DS_1", ObsURL: "s3://ds/DS_1"},
		},
	}

	messages := b.Build(context.Background(), executionInput(), files, "outputFolder")

	require.Len(t, messages, 3)
	ids := make(map[string]bool)
	for _, msg := range messages {
		assert.Contains(t, msg.AdditionalFields, models.T0PdgsDateField)
		assert.Equal(t, "1970-01-01T00:00:00Z", msg.AdditionalFields[models.T0PdgsDateField])
		assert.Equal(t, "outputFolder", msg.AdditionalFields[OutputFolderField])
		assert.Equal(t, "DS_1", msg.Metadata[models.DatastripIDField])
		assert.Equal(t, "S2B", msg.Metadata[models.SatelliteField])
		assert.Equal(t, "execution-worker", msg.Source)
		assert.NoError(t, models.ValidateProcessingMessage(&msg))
		ids[msg.ID] = true
	}
	assert.Len(t, ids, 3)

	assert.Equal(t, models.FamilyL0Datastrip, messages[0].ProductFamily)
	assert.Equal(t, "s3://ds/DS_1", messages[0].StoragePath)
	assert.Equal(t, "DS_1", messages[0].KeyObjectStorage)
}

func TestBuild_NoFiles(t *testing.T) {
	b := NewMessageBuilder("execution-worker", logger.NopLogger())
	assert.Empty(t, b.Build(context.Background(), executionInput(), nil, ""))
}

func TestBuildExecutionMessage(t *testing.T) {
	b := NewMessageBuilder("execution-worker", logger.NopLogger())
	input := executionInput()

	msg := b.BuildExecutionMessage(context.Background(), models.FamilyL1ADatastrip, input)

	assert.Equal(t, models.FamilyL1ADatastrip, msg.ProductFamily)
	assert.Equal(t, input, msg.AdditionalFields[models.ExecutionInputField])
	assert.Contains(t, msg.AdditionalFields, models.T0PdgsDateField)
	assert.NoError(t, models.ValidateProcessingMessage(&msg))

	got, err := models.ExecutionInputOf(&msg)
	require.NoError(t, err)
	assert.Equal(t, input, got)
}

func TestCompletionEvaluator(t *testing.T) {
	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	record := &tracking.Record{
		DatastripID: "DS",
		Tiles: map[string]tracking.TileInfo{
			"TL_1": {TileID: "TL_1"},
			"TL_2": {TileID: "TL_2"},
		},
		CreatedAt: created,
	}

	tests := []struct {
		name        string
		expression  string
		provisional bool
		want        bool
	}{
		{"default", "", false, true},
		{"default provisional", "", true, false},
		{"count", "tile_count == 2", false, true},
		{"age", "age_seconds == 60", false, true},
		{"family", `product_family == "S2_L1C_DS"`, false, true},
		{"tiles", `"TL_2" in tiles`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NewCompletionEvaluator(tt.expression)
			require.NoError(t, err)
			ev.now = func() time.Time { return created.Add(time.Minute) }

			r := *record
			r.Provisional = tt.provisional
			got, err := ev.Complete(context.Background(), &r, models.FamilyL1CDatastrip)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompletionEvaluator_InvalidExpression(t *testing.T) {
	_, err := NewCompletionEvaluator("tile_count")
	assert.Error(t, err)
}

func TestSignal(t *testing.T) {
	ctx := context.Background()
	store := tracking.NewMemoryStore()
	parent := "path"
	require.NoError(t, store.Create(ctx, "DS", "bucket", &parent, "DS"))
	require.NoError(t, store.UpdateTileComplete(ctx, "DS", tracking.TileInfo{TileID: "TL_1", StoragePath: "s3://bucket/path/TL_1"}))

	ev, err := NewCompletionEvaluator("")
	require.NoError(t, err)
	producer := &fakeProducer{}
	s := NewSignaler(store, ev, producer, "signals", "preparation-worker", logger.NopLogger())

	err = s.Signal(logging.WithCorrelationID(ctx, "corr-1"), "DS", models.FamilyL1CTile)
	require.NoError(t, err)

	require.Len(t, producer.messages, 1)
	assert.Equal(t, "signals", producer.messages[0].topic)

	msg := producer.messages[0].msg
	assert.Equal(t, models.FamilyL1CDatastrip, msg.ProductFamily)
	assert.Equal(t, "s3://bucket/path/DS", msg.StoragePath)
	assert.Equal(t, "path/DS", msg.KeyObjectStorage)
	assert.Equal(t, "DS", msg.Metadata[models.DatastripIDField])
	assert.Equal(t, "1", msg.Metadata[models.TileCountField])
	assert.Equal(t, "false", msg.Metadata[models.ProvisionalField])
	assert.Equal(t, "true", msg.Metadata[models.CompleteField])
	assert.Equal(t, "corr-1", msg.Metadata[models.CorrelationIDField])
	assert.Equal(t, []string{"TL_1"}, msg.AdditionalFields["tiles"])
	assert.NoError(t, models.ValidateProcessingMessage(&msg))
}

func TestSignal_ProvisionalRecord(t *testing.T) {
	ctx := context.Background()
	store := tracking.NewMemoryStore()
	require.NoError(t, store.UpdateTileComplete(ctx, "DS", tracking.TileInfo{TileID: "TL_1"}))

	ev, err := NewCompletionEvaluator("")
	require.NoError(t, err)
	producer := &fakeProducer{}
	s := NewSignaler(store, ev, producer, "signals", "preparation-worker", logger.NopLogger())

	require.NoError(t, s.Signal(ctx, "DS", models.FamilyL2ATile))

	msg := producer.messages[0].msg
	assert.Equal(t, models.FamilyL2ADatastrip, msg.ProductFamily)
	assert.Empty(t, msg.StoragePath)
	assert.Equal(t, "DS", msg.KeyObjectStorage)
	assert.Equal(t, "true", msg.Metadata[models.ProvisionalField])
	assert.Equal(t, "false", msg.Metadata[models.CompleteField])
	assert.NoError(t, models.ValidateProcessingMessage(&msg))
}

func TestSignal_Failures(t *testing.T) {
	ctx := context.Background()
	ev, err := NewCompletionEvaluator("")
	require.NoError(t, err)

	t.Run("unknown datastrip", func(t *testing.T) {
		s := NewSignaler(tracking.NewMemoryStore(), ev, &fakeProducer{}, "signals", "p", logger.NopLogger())
		err := s.Signal(ctx, "missing", models.FamilyL1CDatastrip)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("publish error", func(t *testing.T) {
		store := tracking.NewMemoryStore()
		require.NoError(t, store.Create(ctx, "DS", "bucket", nil, "DS"))
		s := NewSignaler(store, ev, &fakeProducer{err: stderrors.New("down")}, "signals", "p", logger.NopLogger())
		assert.Error(t, s.Signal(ctx, "DS", models.FamilyL1CDatastrip))
	})
}
