// Package tracking keeps the assembly state of datastrips: which descriptor
// opened them and which tiles have completed so far.
//
// A tile may arrive before its datastrip descriptor. In that case the first
// tile opens a provisional record with no descriptor location; the later
// Create fills the location in and clears the flag. Records are never
// deleted here.
package tracking

import (
	"context"
	"sort"
	"time"

	"groundseg/pkg/errors"
)

type TileInfo struct {
	TileID      string    `json:"tile_id" bson:"tile_id"`
	StoragePath string    `json:"storage_path" bson:"storage_path"`
	CompletedAt time.Time `json:"completed_at" bson:"completed_at"`
}

type Record struct {
	DatastripID string              `json:"datastrip_id"`
	Bucket      string              `json:"bucket"`
	ParentKey   *string             `json:"parent_key,omitempty"`
	Name        string              `json:"name"`
	Tiles       map[string]TileInfo `json:"tiles"`
	Provisional bool                `json:"provisional"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (r *Record) TileCount() int {
	return len(r.Tiles)
}

// TileIDs returns the completed tile ids in lexical order.
func (r *Record) TileIDs() []string {
	ids := make([]string, 0, len(r.Tiles))
	for id := range r.Tiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Record) clone() *Record {
	out := *r
	if r.ParentKey != nil {
		pk := *r.ParentKey
		out.ParentKey = &pk
	}
	out.Tiles = make(map[string]TileInfo, len(r.Tiles))
	for k, v := range r.Tiles {
		out.Tiles[k] = v
	}
	return &out
}

// Store is the completion tracking store. All mutations of one datastrip id
// are serialised; distinct ids do not contend.
type Store interface {
	// Create opens the record for datastripID. Registering the same
	// descriptor location again is a no-op; a different location is a
	// conflict.
	Create(ctx context.Context, datastripID, bucket string, parentKey *string, name string) error
	// UpdateTileComplete marks tile complete. Marking it twice is a no-op.
	UpdateTileComplete(ctx context.Context, datastripID string, tile TileInfo) error
	Get(ctx context.Context, datastripID string) (*Record, error)
}

func sameLocation(r *Record, bucket string, parentKey *string, name string) bool {
	if r.Bucket != bucket || r.Name != name {
		return false
	}
	if (r.ParentKey == nil) != (parentKey == nil) {
		return false
	}
	return parentKey == nil || *r.ParentKey == *parentKey
}

func storeError(datastripID string, cause error) error {
	return errors.ErrStoreOperation.
		WithCause(cause).
		WithDetail(errors.DetailDatastripID, datastripID)
}

// conflictError reports a second descriptor for an already opened datastrip.
// Redelivering the message cannot fix it, so it is fatal.
func conflictError(datastripID string, existing *Record, bucket string, parentKey *string, name string) error {
	cause := errors.ErrConflict.
		WithMessage("datastrip already registered at a different location").
		WithDetail("existing_bucket", existing.Bucket).
		WithDetail("existing_name", existing.Name).
		WithDetail("bucket", bucket).
		WithDetail("name", name)
	if parentKey != nil {
		cause = cause.WithDetail("parent_key", *parentKey)
	}
	return errors.ErrStoreOperation.
		WithCause(cause).
		WithDetail(errors.DetailDatastripID, datastripID).
		AsFatal()
}

func notFoundError(datastripID string) error {
	return errors.ErrNotFound.
		WithMessage("datastrip record not found").
		WithDetail(errors.DetailDatastripID, datastripID)
}

func copyParentKey(parentKey *string) *string {
	if parentKey == nil {
		return nil
	}
	pk := *parentKey
	return &pk
}
