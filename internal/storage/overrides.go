package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/service"
)

type overrideKey struct {
	kind model.OverrideKind
	key  string
}

// GetOverrideByFingerprint returns the category remembered for an exact fingerprint.
func (s *SQLiteStorage) GetOverrideByFingerprint(ctx context.Context, fingerprint string) (string, bool, error) {
	return s.getOverride(ctx, overrideKey{kind: model.OverrideByFingerprint, key: fingerprint})
}

// GetOverrideByStem returns the category remembered for a merchant stem.
func (s *SQLiteStorage) GetOverrideByStem(ctx context.Context, stem string) (string, bool, error) {
	return s.getOverride(ctx, overrideKey{kind: model.OverrideByStem, key: stem})
}

func (s *SQLiteStorage) getOverride(ctx context.Context, key overrideKey) (string, bool, error) {
	if err := validateContext(ctx); err != nil {
		return "", false, err
	}
	if err := s.syncOverrideCache(ctx, s.db); err != nil {
		return "", false, err
	}
	if category, ok := s.getCachedOverride(key); ok {
		return category, true, nil
	}
	return s.getOverrideTx(ctx, s.db, key, true)
}

func (s *SQLiteStorage) getOverrideTx(ctx context.Context, q queryable, key overrideKey, cache bool) (string, bool, error) {
	if strings.TrimSpace(key.key) == "" {
		return "", false, nil
	}

	var category string
	err := q.QueryRowContext(ctx, `
		SELECT category FROM merchant_overrides
		WHERE kind = ? AND key = ?
	`, string(key.kind), key.key).Scan(&category)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s override: %w", key.kind, wrapDBError(err))
	}

	if cache {
		s.cacheOverride(key, category)
	}
	return category, true, nil
}

// UpsertOverrideByFingerprint remembers category for an exact fingerprint. Last write wins.
func (s *SQLiteStorage) UpsertOverrideByFingerprint(ctx context.Context, fingerprint, category, exampleMerchant string) error {
	return s.upsertOverride(ctx, overrideKey{kind: model.OverrideByFingerprint, key: fingerprint}, category, exampleMerchant)
}

// UpsertOverrideByStem remembers category for a merchant stem. Stems shorter
// than model.MinStemLength are ignored.
func (s *SQLiteStorage) UpsertOverrideByStem(ctx context.Context, stem, category, exampleMerchant string) error {
	return s.upsertOverride(ctx, overrideKey{kind: model.OverrideByStem, key: stem}, category, exampleMerchant)
}

func (s *SQLiteStorage) upsertOverride(ctx context.Context, key overrideKey, category, exampleMerchant string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	stored, err := s.upsertOverrideTx(ctx, s.db, s, key, category, exampleMerchant)
	if err != nil {
		return err
	}
	if stored != "" {
		s.cacheOverride(key, stored)
	}
	return nil
}

// upsertOverrideTx writes the entry and returns the stored category, or "" when the key was rejected.
func (s *SQLiteStorage) upsertOverrideTx(ctx context.Context, q queryable, reg service.CategoryRegistry, key overrideKey, category, exampleMerchant string) (string, error) {
	switch key.kind {
	case model.OverrideByFingerprint:
		if err := validateString(key.key, "fingerprint"); err != nil {
			return "", err
		}
	case model.OverrideByStem:
		if len([]rune(strings.TrimSpace(key.key))) < model.MinStemLength {
			return "", nil
		}
	default:
		return "", fmt.Errorf("%w: override kind %q", ErrInvalidOverride, key.kind)
	}

	stored, err := service.CoerceCategory(ctx, reg, category)
	if err != nil {
		return "", err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO merchant_overrides (kind, key, category, example_merchant, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, key) DO UPDATE SET
			category = excluded.category,
			example_merchant = excluded.example_merchant,
			updated_at = excluded.updated_at
	`, string(key.kind), key.key, stored, exampleMerchant, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to upsert %s override: %w", key.kind, wrapDBError(err))
	}

	return stored, nil
}

// ListOverrides returns fingerprint-keyed overrides, most recently updated first.
func (s *SQLiteStorage) ListOverrides(ctx context.Context) ([]model.OverrideEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listOverridesTx(ctx, s.db, model.OverrideByFingerprint)
}

// ListStemOverrides returns stem-keyed overrides, most recently updated first.
func (s *SQLiteStorage) ListStemOverrides(ctx context.Context) ([]model.OverrideEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listOverridesTx(ctx, s.db, model.OverrideByStem)
}

func (s *SQLiteStorage) listOverridesTx(ctx context.Context, q queryable, kind model.OverrideKind) ([]model.OverrideEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT kind, key, category, example_merchant, updated_at
		FROM merchant_overrides
		WHERE kind = ?
		ORDER BY updated_at DESC, key
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", wrapDBError(err))
	}
	defer func() { _ = rows.Close() }()

	var entries []model.OverrideEntry
	for rows.Next() {
		var (
			entry   model.OverrideEntry
			rowKind string
		)
		if err := rows.Scan(&rowKind, &entry.Key, &entry.Category, &entry.ExampleMerchant, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		entry.Kind = model.OverrideKind(rowKind)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// BackfillStemOverrides derives a stem from the example merchant of every
// fingerprint override and creates the stem entry when none exists yet.
// Existing stem entries are never overwritten, so running it repeatedly is a no-op.
func (s *SQLiteStorage) BackfillStemOverrides(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", wrapDBError(err))
	}
	defer func() { _ = tx.Rollback() }()

	// Oldest first so the most recent correction for a stem is the one kept.
	rows, err := tx.QueryContext(ctx, `
		SELECT key, category, example_merchant, updated_at
		FROM merchant_overrides
		WHERE kind = ?
		ORDER BY updated_at ASC
	`, string(model.OverrideByFingerprint))
	if err != nil {
		return 0, fmt.Errorf("failed to query fingerprint overrides: %w", wrapDBError(err))
	}

	latest := make(map[string]model.OverrideEntry)
	for rows.Next() {
		var entry model.OverrideEntry
		if err := rows.Scan(&entry.Key, &entry.Category, &entry.ExampleMerchant, &entry.UpdatedAt); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan override: %w", err)
		}
		stem := s.normalizer.Stem(entry.ExampleMerchant)
		if len([]rune(stem)) < model.MinStemLength {
			continue
		}
		latest[stem] = entry
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	created := 0
	for stem, entry := range latest {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO merchant_overrides (kind, key, category, example_merchant, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(kind, key) DO NOTHING
		`, string(model.OverrideByStem), stem, entry.Category, entry.ExampleMerchant, entry.UpdatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to backfill stem %q: %w", stem, wrapDBError(err))
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		created += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit backfill: %w", wrapDBError(err))
	}
	return created, nil
}

// syncOverrideCache drops the cache when another connection, possibly in
// another process, has committed since it was filled. data_version only
// moves for foreign commits, so this connection's own writes keep the cache.
func (s *SQLiteStorage) syncOverrideCache(ctx context.Context, q queryable) error {
	version, err := dataVersion(ctx, q)
	if err != nil {
		return err
	}

	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	if version != s.cacheVersion {
		s.overrideCache = make(map[overrideKey]string)
		s.cacheVersion = version
	}
	return nil
}

func dataVersion(ctx context.Context, q queryable) (int64, error) {
	var version int64
	if err := q.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read data version: %w", wrapDBError(err))
	}
	return version, nil
}

// getCachedOverride retrieves an override from the cache.
func (s *SQLiteStorage) getCachedOverride(key overrideKey) (string, bool) {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		// Double-check after acquiring write lock
		if time.Now().After(s.cacheExpiry) {
			s.overrideCache = make(map[overrideKey]string)
		}
		return "", false
	}

	category, ok := s.overrideCache[key]
	s.cacheMutex.RUnlock()
	return category, ok
}

// cacheOverride adds an override to the cache.
func (s *SQLiteStorage) cacheOverride(key overrideKey, category string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.overrideCache) == 0 {
		s.cacheExpiry = time.Now().Add(overrideCacheTTL)
	}
	s.overrideCache[key] = category
}

// WarmOverrideCache loads every override into the cache.
func (s *SQLiteStorage) WarmOverrideCache(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	version, err := dataVersion(ctx, s.db)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, key, category FROM merchant_overrides`)
	if err != nil {
		return fmt.Errorf("failed to query overrides: %w", wrapDBError(err))
	}
	defer func() { _ = rows.Close() }()

	cache := make(map[overrideKey]string)
	for rows.Next() {
		var kind, key, category string
		if err := rows.Scan(&kind, &key, &category); err != nil {
			return fmt.Errorf("failed to scan override: %w", err)
		}
		cache[overrideKey{kind: model.OverrideKind(kind), key: key}] = category
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.overrideCache = cache
	s.cacheExpiry = time.Now().Add(overrideCacheTTL)
	s.cacheVersion = version
	return nil
}
