package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists records in the datastrips and datastrip_tiles
// tables. Create locks the datastrip row for the length of its transaction.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Create(ctx context.Context, datastripID, bucket string, parentKey *string, name string) error {
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(datastripID, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO datastrips (datastrip_id, bucket, parent_key, name, provisional, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		ON CONFLICT (datastrip_id) DO NOTHING`,
		datastripID, bucket, nullString(parentKey), name, now,
	)
	if err != nil {
		return storeError(datastripID, fmt.Errorf("failed to insert datastrip: %w", err))
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return storeError(datastripID, fmt.Errorf("failed to read rows affected: %w", err))
	}

	if inserted == 0 {
		existing, err := s.lockRecord(ctx, tx, datastripID)
		if err != nil {
			return err
		}

		switch {
		case existing.Provisional:
			_, err = tx.ExecContext(ctx, `
				UPDATE datastrips
				SET bucket = $2, parent_key = $3, name = $4, provisional = FALSE, updated_at = $5
				WHERE datastrip_id = $1`,
				datastripID, bucket, nullString(parentKey), name, now,
			)
			if err != nil {
				return storeError(datastripID, fmt.Errorf("failed to complete provisional datastrip: %w", err))
			}
		case !sameLocation(existing, bucket, parentKey, name):
			return conflictError(datastripID, existing, bucket, parentKey, name)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError(datastripID, fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

func (s *PostgresStore) lockRecord(ctx context.Context, tx *sql.Tx, datastripID string) (*Record, error) {
	var (
		record    Record
		parentKey sql.NullString
	)
	err := tx.QueryRowContext(ctx, `
		SELECT bucket, parent_key, name, provisional, created_at, updated_at
		FROM datastrips WHERE datastrip_id = $1 FOR UPDATE`,
		datastripID,
	).Scan(&record.Bucket, &parentKey, &record.Name, &record.Provisional, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, storeError(datastripID, fmt.Errorf("failed to lock datastrip: %w", err))
	}
	record.DatastripID = datastripID
	if parentKey.Valid {
		record.ParentKey = &parentKey.String
	}
	return &record, nil
}

func (s *PostgresStore) UpdateTileComplete(ctx context.Context, datastripID string, tile TileInfo) error {
	now := s.now().UTC()
	if tile.CompletedAt.IsZero() {
		tile.CompletedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(datastripID, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO datastrips (datastrip_id, provisional, created_at, updated_at)
		VALUES ($1, TRUE, $2, $2)
		ON CONFLICT (datastrip_id) DO NOTHING`,
		datastripID, now,
	)
	if err != nil {
		return storeError(datastripID, fmt.Errorf("failed to open provisional datastrip: %w", err))
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO datastrip_tiles (datastrip_id, tile_id, storage_path, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (datastrip_id, tile_id) DO NOTHING`,
		datastripID, tile.TileID, tile.StoragePath, tile.CompletedAt,
	)
	if err != nil {
		return storeError(datastripID, fmt.Errorf("failed to insert tile: %w", err))
	}

	if added, _ := res.RowsAffected(); added > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE datastrips SET updated_at = $2 WHERE datastrip_id = $1`,
			datastripID, now,
		)
		if err != nil {
			return storeError(datastripID, fmt.Errorf("failed to touch datastrip: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError(datastripID, fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, datastripID string) (*Record, error) {
	var (
		record    Record
		parentKey sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT bucket, parent_key, name, provisional, created_at, updated_at
		FROM datastrips WHERE datastrip_id = $1`,
		datastripID,
	).Scan(&record.Bucket, &parentKey, &record.Name, &record.Provisional, &record.CreatedAt, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, notFoundError(datastripID)
	}
	if err != nil {
		return nil, storeError(datastripID, fmt.Errorf("failed to query datastrip: %w", err))
	}
	record.DatastripID = datastripID
	if parentKey.Valid {
		record.ParentKey = &parentKey.String
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tile_id, storage_path, completed_at
		FROM datastrip_tiles WHERE datastrip_id = $1`,
		datastripID,
	)
	if err != nil {
		return nil, storeError(datastripID, fmt.Errorf("failed to query tiles: %w", err))
	}
	defer rows.Close()

	record.Tiles = make(map[string]TileInfo)
	for rows.Next() {
		var tile TileInfo
		if err := rows.Scan(&tile.TileID, &tile.StoragePath, &tile.CompletedAt); err != nil {
			return nil, storeError(datastripID, fmt.Errorf("failed to scan tile: %w", err))
		}
		record.Tiles[tile.TileID] = tile
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(datastripID, fmt.Errorf("failed to iterate tiles: %w", err))
	}

	return &record, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
