package tracking

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	mu     sync.Mutex
	record *Record
}

// MemoryStore keeps records in process. Each datastrip id has its own mutex;
// the map lock is only held to find or add an entry.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) entry(datastripID string) *memoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[datastripID]
	if !ok {
		e = &memoryEntry{}
		s.entries[datastripID] = e
	}
	return e
}

func (s *MemoryStore) Create(ctx context.Context, datastripID, bucket string, parentKey *string, name string) error {
	if err := ctx.Err(); err != nil {
		return storeError(datastripID, err)
	}

	e := s.entry(datastripID)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now().UTC()
	switch {
	case e.record == nil:
		e.record = &Record{
			DatastripID: datastripID,
			Bucket:      bucket,
			ParentKey:   copyParentKey(parentKey),
			Name:        name,
			Tiles:       make(map[string]TileInfo),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	case e.record.Provisional:
		e.record.Bucket = bucket
		e.record.ParentKey = copyParentKey(parentKey)
		e.record.Name = name
		e.record.Provisional = false
		e.record.UpdatedAt = now
	case !sameLocation(e.record, bucket, parentKey, name):
		return conflictError(datastripID, e.record, bucket, parentKey, name)
	}
	return nil
}

func (s *MemoryStore) UpdateTileComplete(ctx context.Context, datastripID string, tile TileInfo) error {
	if err := ctx.Err(); err != nil {
		return storeError(datastripID, err)
	}

	e := s.entry(datastripID)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now().UTC()
	if e.record == nil {
		e.record = &Record{
			DatastripID: datastripID,
			Tiles:       make(map[string]TileInfo),
			Provisional: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	if _, done := e.record.Tiles[tile.TileID]; done {
		return nil
	}
	if tile.CompletedAt.IsZero() {
		tile.CompletedAt = now
	}
	e.record.Tiles[tile.TileID] = tile
	e.record.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, datastripID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(datastripID, err)
	}

	s.mu.Lock()
	e, ok := s.entries[datastripID]
	s.mu.Unlock()
	if !ok {
		return nil, notFoundError(datastripID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record == nil {
		return nil, notFoundError(datastripID)
	}
	return e.record.clone(), nil
}
