package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adeilh/go-newscache/cache"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS news_cache (
		key        TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		written_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		source     TEXT NOT NULL DEFAULT '',
		metadata   JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_cache_written_at ON news_cache (written_at)`,
	`CREATE INDEX IF NOT EXISTS idx_news_cache_expires_at ON news_cache (expires_at)`,
}

// Store implements cache.Store on top of a PostgreSQL database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing *sql.DB connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open creates the schema. Called by cache.Service.Open.
func (s *Store) Open(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the database handle. Called by cache.Service.Close.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, entry cache.Entry) error {
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	const query = `INSERT INTO news_cache (key, data, written_at, expires_at, source, metadata)
	               VALUES ($1, $2, $3, $4, $5, $6)
	               ON CONFLICT (key) DO UPDATE SET
	                   data = EXCLUDED.data,
	                   written_at = EXCLUDED.written_at,
	                   expires_at = EXCLUDED.expires_at,
	                   source = EXCLUDED.source,
	                   metadata = EXCLUDED.metadata`
	_, err = s.db.ExecContext(ctx, query,
		entry.Key, []byte(entry.Data), entry.WrittenAt.UnixMilli(), entry.ExpiresAt.UnixMilli(), entry.Source, metadata)
	if err != nil {
		return fmt.Errorf("postgres: put %q: %w", entry.Key, err)
	}
	return nil
}

func (s *Store) GetByKey(ctx context.Context, key string) (cache.Entry, error) {
	const query = `SELECT key, data, written_at, expires_at, source, metadata FROM news_cache WHERE key = $1`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cache.Entry{}, cache.ErrNotFound
		}
		return cache.Entry{}, fmt.Errorf("postgres: get %q: %w", key, err)
	}
	return entry, nil
}

func (s *Store) DeleteByKey(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM news_cache WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("postgres: delete %q: %w", key, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return cache.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM news_cache`); err != nil {
		return fmt.Errorf("postgres: delete all: %w", err)
	}
	return nil
}

func (s *Store) ScanAll(ctx context.Context) ([]cache.Entry, error) {
	const query = `SELECT key, data, written_at, expires_at, source, metadata FROM news_cache`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan: %w", err)
	}
	defer rows.Close()

	var entries []cache.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan: %w", err)
	}
	return entries, nil
}

func (s *Store) ScanExpiredBefore(ctx context.Context, ts time.Time) ([]string, error) {
	const query = `SELECT key FROM news_cache WHERE expires_at <= $1`
	rows, err := s.db.QueryContext(ctx, query, ts.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("postgres: scan expired: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("postgres: scan expired: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan expired: %w", err)
	}
	return keys, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (cache.Entry, error) {
	var (
		entry     cache.Entry
		data      []byte
		writtenAt int64
		expiresAt int64
		metadata  []byte
	)
	if err := row.Scan(&entry.Key, &data, &writtenAt, &expiresAt, &entry.Source, &metadata); err != nil {
		return cache.Entry{}, err
	}
	entry.Data = json.RawMessage(data)
	entry.WrittenAt = time.UnixMilli(writtenAt)
	entry.ExpiresAt = time.UnixMilli(expiresAt)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return cache.Entry{}, err
		}
	}
	return entry, nil
}

func marshalMetadata(metadata map[string]any) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal metadata: %w", err)
	}
	return encoded, nil
}
