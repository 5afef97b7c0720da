package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoCollection creates the indexes the datastrip tracking collection
// relies on. The collection itself is created on first insert.
func EnsureMongoCollection(ctx context.Context, db *mongo.Database, name string) error {
	collection := db.Collection(name)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_datastrips_updated_at"),
		},
		{
			Keys:    bson.D{{Key: "provisional", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_datastrips_provisional_updated_at"),
		},
		{
			Keys:    bson.D{{Key: "bucket", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_datastrips_bucket_name"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
