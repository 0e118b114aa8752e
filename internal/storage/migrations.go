package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial history schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY,
					name TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS search_requests (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL,
					sort_command TEXT NOT NULL,
					city_name TEXT NOT NULL,
					city_code TEXT NOT NULL,
					country_code TEXT NOT NULL DEFAULT '',
					country_name TEXT NOT NULL DEFAULT '',
					currency_code TEXT NOT NULL DEFAULT '',
					currency_name TEXT NOT NULL DEFAULT '',
					check_in TEXT NOT NULL,
					check_out TEXT NOT NULL,
					price_range TEXT NOT NULL DEFAULT '',
					radius INTEGER NOT NULL,
					created_at DATETIME NOT NULL,
					FOREIGN KEY (user_id) REFERENCES users(id)
				)`,
				`CREATE INDEX idx_search_requests_user_created ON search_requests(user_id, created_at)`,

				`CREATE TABLE IF NOT EXISTS search_hotels (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					request_id INTEGER NOT NULL,
					position INTEGER NOT NULL,
					hotel_id TEXT NOT NULL,
					name TEXT NOT NULL,
					latitude REAL,
					longitude REAL,
					distance REAL,
					distance_unit TEXT NOT NULL DEFAULT '',
					total TEXT NOT NULL DEFAULT '',
					currency TEXT NOT NULL DEFAULT '',
					guest_rating INTEGER NOT NULL DEFAULT 0,
					photos TEXT NOT NULL DEFAULT '[]',
					UNIQUE (request_id, hotel_id),
					FOREIGN KEY (request_id) REFERENCES search_requests(id) ON DELETE CASCADE
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add response cache",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS api_cache (
					endpoint TEXT NOT NULL,
					request_hash TEXT NOT NULL,
					value BLOB NOT NULL,
					created_at DATETIME NOT NULL,
					expires_at DATETIME NOT NULL,
					PRIMARY KEY (endpoint, request_hash)
				)`,
				`CREATE INDEX idx_api_cache_expires ON api_cache(expires_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add geohash to stored hotels",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`ALTER TABLE search_hotels ADD COLUMN geohash TEXT NOT NULL DEFAULT ''`); err != nil {
				return fmt.Errorf("failed to add geohash column: %w", err)
			}
			if _, err := tx.Exec(`CREATE INDEX idx_search_hotels_geohash ON search_hotels(geohash)`); err != nil {
				return fmt.Errorf("failed to create geohash index: %w", err)
			}
			return nil
		},
	},
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
