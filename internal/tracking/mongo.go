package tracking

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRecord struct {
	DatastripID string     `bson:"_id"`
	Bucket      string     `bson:"bucket"`
	ParentKey   *string    `bson:"parent_key"`
	Name        string     `bson:"name"`
	Tiles       []TileInfo `bson:"tiles"`
	Provisional bool       `bson:"provisional"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func (m *mongoRecord) toRecord() *Record {
	r := &Record{
		DatastripID: m.DatastripID,
		Bucket:      m.Bucket,
		ParentKey:   m.ParentKey,
		Name:        m.Name,
		Provisional: m.Provisional,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Tiles:       make(map[string]TileInfo, len(m.Tiles)),
	}
	for _, t := range m.Tiles {
		r.Tiles[t.TileID] = t
	}
	return r
}

// MongoStore keeps one document per datastrip with its tiles embedded.
// Every mutation is a single-document operation, which MongoDB applies
// atomically.
type MongoStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{
		collection: db.Collection(collection),
		now:        time.Now,
	}
}

// Create fills a provisional document, inserts a new one, or compares with
// the existing one. A provisional document can appear between the insert
// attempt and the read, so the sequence is tried twice.
func (s *MongoStore) Create(ctx context.Context, datastripID, bucket string, parentKey *string, name string) error {
	for attempt := 0; attempt < 2; attempt++ {
		now := s.now().UTC()

		res, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": datastripID, "provisional": true},
			bson.M{"$set": bson.M{
				"bucket":      bucket,
				"parent_key":  parentKey,
				"name":        name,
				"provisional": false,
				"updated_at":  now,
			}},
		)
		if err != nil {
			return storeError(datastripID, fmt.Errorf("failed to complete provisional datastrip: %w", err))
		}
		if res.MatchedCount > 0 {
			return nil
		}

		_, err = s.collection.InsertOne(ctx, mongoRecord{
			DatastripID: datastripID,
			Bucket:      bucket,
			ParentKey:   parentKey,
			Name:        name,
			Tiles:       []TileInfo{},
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return storeError(datastripID, fmt.Errorf("failed to insert datastrip: %w", err))
		}

		existing, err := s.find(ctx, datastripID)
		if err != nil {
			return err
		}
		if existing.Provisional {
			continue
		}
		if !sameLocation(existing, bucket, parentKey, name) {
			return conflictError(datastripID, existing, bucket, parentKey, name)
		}
		return nil
	}
	return storeError(datastripID, fmt.Errorf("datastrip kept changing during create"))
}

// UpdateTileComplete pushes the tile unless it is already present. The
// upsert creates a provisional document for a tile that arrives first. A
// duplicate key error means the document appeared concurrently or already
// holds the tile, so the push is repeated without upsert; matching nothing
// then means the tile is present.
func (s *MongoStore) UpdateTileComplete(ctx context.Context, datastripID string, tile TileInfo) error {
	now := s.now().UTC()
	if tile.CompletedAt.IsZero() {
		tile.CompletedAt = now
	}

	filter := bson.M{"_id": datastripID, "tiles.tile_id": bson.M{"$ne": tile.TileID}}
	push := bson.M{"tiles": tile}
	set := bson.M{"updated_at": now}

	upsert := bson.M{
		"$push": push,
		"$set":  set,
		"$setOnInsert": bson.M{
			"bucket":      "",
			"parent_key":  nil,
			"name":        "",
			"provisional": true,
			"created_at":  now,
		},
	}

	_, err := s.collection.UpdateOne(ctx, filter, upsert, options.Update().SetUpsert(true))
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return storeError(datastripID, fmt.Errorf("failed to record tile: %w", err))
	}

	if _, err := s.collection.UpdateOne(ctx, filter, bson.M{"$push": push, "$set": set}); err != nil {
		return storeError(datastripID, fmt.Errorf("failed to record tile: %w", err))
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, datastripID string) (*Record, error) {
	return s.find(ctx, datastripID)
}

func (s *MongoStore) find(ctx context.Context, datastripID string) (*Record, error) {
	var doc mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": datastripID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, notFoundError(datastripID)
	}
	if err != nil {
		return nil, storeError(datastripID, fmt.Errorf("failed to find datastrip: %w", err))
	}
	return doc.toRecord(), nil
}
