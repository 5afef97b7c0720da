package tracking

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"groundseg/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func strPtr(s string) *string { return &s }

func TestMemoryStore_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		first     func(s *MemoryStore) error
		bucket    string
		parentKey *string
		fileName  string
		wantErr   bool
	}{
		{
			name:      "new record",
			first:     func(s *MemoryStore) error { return nil },
			bucket:    "bucket",
			parentKey: strPtr("path"),
			fileName:  "DS",
		},
		{
			name: "same location is a no-op",
			first: func(s *MemoryStore) error {
				return s.Create(ctx, "DS", "bucket", strPtr("path"), "DS")
			},
			bucket:    "bucket",
			parentKey: strPtr("path"),
			fileName:  "DS",
		},
		{
			name: "different location conflicts",
			first: func(s *MemoryStore) error {
				return s.Create(ctx, "DS", "bucket", strPtr("path"), "DS")
			},
			bucket:    "bucket",
			parentKey: strPtr("other"),
			fileName:  "DS",
			wantErr:   true,
		},
		{
			name: "parent key absence matters",
			first: func(s *MemoryStore) error {
				return s.Create(ctx, "DS", "bucket", nil, "DS")
			},
			bucket:    "bucket",
			parentKey: strPtr(""),
			fileName:  "DS",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore()
			require.NoError(t, tt.first(s))

			err := s.Create(ctx, "DS", tt.bucket, tt.parentKey, tt.fileName)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsStoreOperation(err))
				assert.True(t, errors.IsConflict(err))
				assert.True(t, errors.IsFatal(err))
				return
			}
			require.NoError(t, err)

			rec, err := s.Get(ctx, "DS")
			require.NoError(t, err)
			assert.Equal(t, "bucket", rec.Bucket)
			assert.Equal(t, "DS", rec.Name)
			assert.False(t, rec.Provisional)
		})
	}
}

func TestMemoryStore_TileBeforeDatastrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpdateTileComplete(ctx, "DS", TileInfo{TileID: "TL1", StoragePath: "s3://bucket/path/TL1"}))

	rec, err := s.Get(ctx, "DS")
	require.NoError(t, err)
	assert.True(t, rec.Provisional)
	assert.Equal(t, 1, rec.TileCount())
	createdAt := rec.CreatedAt

	require.NoError(t, s.Create(ctx, "DS", "bucket", strPtr("path"), "DS"))

	rec, err = s.Get(ctx, "DS")
	require.NoError(t, err)
	assert.False(t, rec.Provisional)
	assert.Equal(t, "bucket", rec.Bucket)
	require.NotNil(t, rec.ParentKey)
	assert.Equal(t, "path", *rec.ParentKey)
	assert.Equal(t, createdAt, rec.CreatedAt)
	assert.Equal(t, []string{"TL1"}, rec.TileIDs())
}

func TestMemoryStore_UpdateTileIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, "DS", "bucket", nil, "DS"))

	tile := TileInfo{TileID: "TL1", StoragePath: "s3://bucket/TL1"}
	require.NoError(t, s.UpdateTileComplete(ctx, "DS", tile))
	first, err := s.Get(ctx, "DS")
	require.NoError(t, err)

	require.NoError(t, s.UpdateTileComplete(ctx, "DS", tile))
	second, err := s.Get(ctx, "DS")
	require.NoError(t, err)

	assert.Equal(t, 1, second.TileCount())
	assert.Equal(t, first.Tiles["TL1"].CompletedAt, second.Tiles["TL1"].CompletedAt)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.UpdateTileComplete(ctx, "DS", TileInfo{TileID: "TL1"}))

	rec, err := s.Get(ctx, "DS")
	require.NoError(t, err)
	rec.Tiles["TL2"] = TileInfo{TileID: "TL2"}

	again, err := s.Get(ctx, "DS")
	require.NoError(t, err)
	assert.Equal(t, 1, again.TileCount())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryStore().Create(ctx, "DS", "bucket", nil, "DS")
	require.Error(t, err)
	assert.True(t, errors.IsStoreOperation(err))
	assert.False(t, errors.IsFatal(err))
}

func TestMemoryStore_ConcurrentTilesAndCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const tiles = 50
	var wg sync.WaitGroup
	for i := 0; i < tiles; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("TL%02d", i)
			assert.NoError(t, s.UpdateTileComplete(ctx, "DS", TileInfo{TileID: id}))
			assert.NoError(t, s.UpdateTileComplete(ctx, "DS", TileInfo{TileID: id}))
		}(i)
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Create(ctx, "DS", "bucket", strPtr("path"), "DS"))
		}()
	}
	wg.Wait()

	rec, err := s.Get(ctx, "DS")
	require.NoError(t, err)
	assert.Equal(t, tiles, rec.TileCount())
	assert.False(t, rec.Provisional)
}
