package autosave

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS autosave_blobs (
  doc_key TEXT PRIMARY KEY,
  blob TEXT NOT NULL,
  updated_at BIGINT NOT NULL
)`

// SQLStore persists blobs in a single table. The statements run unchanged
// on Postgres (pgx) and SQLite.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore ensures the autosave table exists.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure autosave schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM autosave_blobs WHERE doc_key = $1`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load autosave: %w", err)
	}
	return []byte(blob), true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, blob []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO autosave_blobs (doc_key, blob, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (doc_key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = EXCLUDED.updated_at
	`, key, string(blob), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save autosave: %w", err)
	}
	return nil
}
