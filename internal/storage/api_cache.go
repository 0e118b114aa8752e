package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetCached returns an unexpired cached response.
func (s *SQLiteStorage) GetCached(ctx context.Context, endpoint, key string) ([]byte, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM api_cache
		WHERE endpoint = ? AND request_hash = ? AND expires_at > ?`,
		endpoint, key, s.now().UTC()).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry %s/%s: %w", endpoint, key, err)
	}
	return value, true, nil
}

// PutCached stores or replaces a cached response.
func (s *SQLiteStorage) PutCached(ctx context.Context, endpoint, key string, value []byte, expiresAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(endpoint, "endpoint"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_cache (endpoint, request_hash, value, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(endpoint, request_hash) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		endpoint, key, value, s.now().UTC(), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s/%s: %w", endpoint, key, err)
	}
	return nil
}

// PurgeExpired deletes expired cache entries and returns how many were removed.
func (s *SQLiteStorage) PurgeExpired(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_cache WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

// PurgeAll empties the cache.
func (s *SQLiteStorage) PurgeAll(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return res.RowsAffected()
}
