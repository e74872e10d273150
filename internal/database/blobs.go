package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteBlobs stores state blobs in the state_blobs table.
type SQLiteBlobs struct {
	db *sql.DB
}

func NewSQLiteBlobs(db *sql.DB) *SQLiteBlobs {
	return &SQLiteBlobs{db: db}
}

func (s *SQLiteBlobs) GetBlob(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM state_blobs WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, true, nil
}

func (s *SQLiteBlobs) PutBlob(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state_blobs (key, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}
