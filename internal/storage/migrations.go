package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					date TEXT NOT NULL,
					time TEXT NOT NULL DEFAULT '',
					merchant TEXT NOT NULL,
					amount TEXT NOT NULL,
					channel TEXT NOT NULL DEFAULT '',
					payment_method TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL,
					category_source TEXT NOT NULL DEFAULT '',
					category_confidence REAL NOT NULL DEFAULT 0,
					category_fingerprint TEXT NOT NULL DEFAULT '',
					matched_rule_id TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_category ON transactions(category)`,

				`CREATE TABLE IF NOT EXISTS merchant_overrides (
					fingerprint TEXT PRIMARY KEY,
					category TEXT NOT NULL,
					example_merchant TEXT NOT NULL DEFAULT '',
					updated_at DATETIME NOT NULL
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add custom categories",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS custom_categories (
					name TEXT PRIMARY KEY,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Add merchant candidates and secondary signals to transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE transactions ADD COLUMN canonical_merchant TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE transactions ADD COLUMN payee TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE transactions ADD COLUMN counterparty TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE transactions ADD COLUMN description TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE transactions ADD COLUMN mcc TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE transactions ADD COLUMN country_prefix TEXT NOT NULL DEFAULT ''`,
			)
		},
	},
	{
		Version:     4,
		Description: "Key merchant overrides by kind to support stem overrides",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE merchant_overrides_v2 (
					kind TEXT NOT NULL CHECK (kind IN ('fingerprint', 'stem')),
					key TEXT NOT NULL,
					category TEXT NOT NULL,
					example_merchant TEXT NOT NULL DEFAULT '',
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (kind, key)
				)`,
				`INSERT INTO merchant_overrides_v2 (kind, key, category, example_merchant, updated_at)
				 SELECT 'fingerprint', fingerprint, category, example_merchant, updated_at
				 FROM merchant_overrides`,
				`DROP TABLE merchant_overrides`,
				`ALTER TABLE merchant_overrides_v2 RENAME TO merchant_overrides`,
				`CREATE INDEX idx_merchant_overrides_updated ON merchant_overrides(kind, updated_at DESC)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate runs all database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", wrapDBError(err))
	}

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

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
