package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result codes of createScript.
const (
	createInserted  = 1
	createFilled    = 2
	createUnchanged = 0
	createConflict  = -1
)

// createScript opens or completes the record hash in one round trip.
// KEYS[1] record hash; ARGV bucket, parent_key, has_parent, name, now.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('HSET', KEYS[1], 'bucket', ARGV[1], 'parent_key', ARGV[2], 'has_parent', ARGV[3], 'name', ARGV[4], 'provisional', '0', 'created_at', ARGV[5], 'updated_at', ARGV[5])
  return 1
end
if redis.call('HGET', KEYS[1], 'provisional') == '1' then
  redis.call('HSET', KEYS[1], 'bucket', ARGV[1], 'parent_key', ARGV[2], 'has_parent', ARGV[3], 'name', ARGV[4], 'provisional', '0', 'updated_at', ARGV[5])
  return 2
end
local cur = redis.call('HMGET', KEYS[1], 'bucket', 'parent_key', 'has_parent', 'name')
if cur[1] == ARGV[1] and cur[2] == ARGV[2] and cur[3] == ARGV[3] and cur[4] == ARGV[4] then
  return 0
end
return -1
`)

// tileScript records one tile, opening a provisional record when needed.
// KEYS[1] record hash, KEYS[2] tile hash; ARGV tile_id, tile json, now.
var tileScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('HSET', KEYS[1], 'bucket', '', 'parent_key', '', 'has_parent', '0', 'name', '', 'provisional', '1', 'created_at', ARGV[3], 'updated_at', ARGV[3])
end
local added = redis.call('HSETNX', KEYS[2], ARGV[1], ARGV[2])
if added == 1 then
  redis.call('HSET', KEYS[1], 'updated_at', ARGV[3])
end
return added
`)

// RedisStore keeps each record in a hash and its tiles in a second hash.
// Both keys share a hash tag so the scripts stay valid on a cluster.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

var braceStripper = strings.NewReplacer("{", "", "}", "")

// recordKey puts a brace-free copy of the id in the hash tag. Redis hashes
// the whole key when the tag is empty, so an id without usable characters
// gets a fixed tag.
func (s *RedisStore) recordKey(datastripID string) string {
	tag := braceStripper.Replace(datastripID)
	if tag == "" {
		tag = "_"
	}
	return fmt.Sprintf("%sds:{%s}:%s", s.prefix, tag, datastripID)
}

func (s *RedisStore) tilesKey(datastripID string) string {
	return s.recordKey(datastripID) + ":tiles"
}

func (s *RedisStore) Create(ctx context.Context, datastripID, bucket string, parentKey *string, name string) error {
	pk, hasParent := "", "0"
	if parentKey != nil {
		pk, hasParent = *parentKey, "1"
	}
	now := s.now().UTC().Format(time.RFC3339Nano)

	res, err := createScript.Run(ctx, s.client,
		[]string{s.recordKey(datastripID)},
		bucket, pk, hasParent, name, now,
	).Int()
	if err != nil {
		return storeError(datastripID, fmt.Errorf("redis create script failed: %w", err))
	}

	if res == createConflict {
		existing, getErr := s.Get(ctx, datastripID)
		if getErr != nil {
			return getErr
		}
		return conflictError(datastripID, existing, bucket, parentKey, name)
	}
	return nil
}

func (s *RedisStore) UpdateTileComplete(ctx context.Context, datastripID string, tile TileInfo) error {
	now := s.now().UTC()
	if tile.CompletedAt.IsZero() {
		tile.CompletedAt = now
	}
	body, err := json.Marshal(tile)
	if err != nil {
		return storeError(datastripID, fmt.Errorf("failed to marshal tile: %w", err))
	}

	err = tileScript.Run(ctx, s.client,
		[]string{s.recordKey(datastripID), s.tilesKey(datastripID)},
		tile.TileID, string(body), now.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return storeError(datastripID, fmt.Errorf("redis tile script failed: %w", err))
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, datastripID string) (*Record, error) {
	var recordCmd, tilesCmd *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		recordCmd = pipe.HGetAll(ctx, s.recordKey(datastripID))
		tilesCmd = pipe.HGetAll(ctx, s.tilesKey(datastripID))
		return nil
	})
	if err != nil {
		return nil, storeError(datastripID, fmt.Errorf("redis read failed: %w", err))
	}

	fields := recordCmd.Val()
	if len(fields) == 0 {
		return nil, notFoundError(datastripID)
	}

	record := &Record{
		DatastripID: datastripID,
		Bucket:      fields["bucket"],
		Name:        fields["name"],
		Provisional: fields["provisional"] == "1",
		Tiles:       make(map[string]TileInfo, len(tilesCmd.Val())),
	}
	if fields["has_parent"] == "1" {
		pk := fields["parent_key"]
		record.ParentKey = &pk
	}
	if record.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, storeError(datastripID, fmt.Errorf("invalid created_at: %w", err))
	}
	if record.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return nil, storeError(datastripID, fmt.Errorf("invalid updated_at: %w", err))
	}

	for id, raw := range tilesCmd.Val() {
		var tile TileInfo
		if err := json.Unmarshal([]byte(raw), &tile); err != nil {
			return nil, storeError(datastripID, fmt.Errorf("invalid tile %s: %w", id, err))
		}
		record.Tiles[id] = tile
	}

	return record, nil
}
