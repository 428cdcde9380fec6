package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/merchant"
	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/service"
)

// overrideCacheTTL bounds how long override lookups are served from memory.
const overrideCacheTTL = 5 * time.Minute

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	cacheExpiry   time.Time
	db            *sql.DB
	overrideCache map[overrideKey]string
	normalizer    *merchant.Normalizer
	dbPath        string
	cacheVersion  int64
	cacheMutex    sync.RWMutex
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithNormalizer sets the normalizer used to derive stems during backfill.
func WithNormalizer(n *merchant.Normalizer) Option {
	return func(s *SQLiteStorage) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// Open creates the storage, applies migrations and backfills stem overrides.
func Open(ctx context.Context, dbPath string, opts ...Option) (*SQLiteStorage, error) {
	s, err := NewSQLiteStorage(dbPath, opts...)
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	created, err := s.BackfillStemOverrides(ctx)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to backfill stem overrides: %w", err)
	}
	if created > 0 {
		slog.Info("Backfilled stem overrides", "created", created)
	}

	return s, nil
}

// NewSQLiteStorage opens the database without migrating it.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", common.ErrStoreUnavailable, err)
	}

	s := &SQLiteStorage{
		db:            db,
		dbPath:        dbPath,
		normalizer:    merchant.Default(),
		overrideCache: make(map[overrideKey]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// NewCheckpointManager creates a new checkpoint manager for this storage instance.
func (s *SQLiteStorage) NewCheckpointManager() (*CheckpointManager, error) {
	if s.dbPath == ":memory:" {
		return nil, fmt.Errorf("checkpoints require a file-backed database")
	}
	return NewCheckpointManager(s.db, s.dbPath)
}

// BeginTx starts a new database transaction. While it is open every other
// call on the storage blocks, so callers must use the returned handle only.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", wrapDBError(err))
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
		pending: make(map[overrideKey]string),
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
	pending map[overrideKey]string
}

func (t *sqliteTransaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return wrapDBError(err)
	}
	for key, category := range t.pending {
		t.storage.cacheOverride(key, category)
	}
	return nil
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listTransactionsTx(ctx, t.tx)
}

func (t *sqliteTransaction) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getTransactionTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) TransactionExists(ctx context.Context, id string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return t.storage.transactionExistsTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return t.storage.insertTransactionTx(ctx, t.tx, t, txn)
}

func (t *sqliteTransaction) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return t.storage.updateTransactionTx(ctx, t.tx, t, txn)
}

func (t *sqliteTransaction) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return t.storage.deleteTransactionTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) DeleteAllTransactions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.deleteAllTransactionsTx(ctx, t.tx)
}

func (t *sqliteTransaction) GetOverrideByFingerprint(ctx context.Context, fingerprint string) (string, bool, error) {
	return t.getOverride(ctx, overrideKey{kind: model.OverrideByFingerprint, key: fingerprint})
}

func (t *sqliteTransaction) GetOverrideByStem(ctx context.Context, stem string) (string, bool, error) {
	return t.getOverride(ctx, overrideKey{kind: model.OverrideByStem, key: stem})
}

func (t *sqliteTransaction) getOverride(ctx context.Context, key overrideKey) (string, bool, error) {
	if err := validateContext(ctx); err != nil {
		return "", false, err
	}
	if category, ok := t.pending[key]; ok {
		return category, true, nil
	}
	if err := t.storage.syncOverrideCache(ctx, t.tx); err != nil {
		return "", false, err
	}
	if category, ok := t.storage.getCachedOverride(key); ok {
		return category, true, nil
	}
	return t.storage.getOverrideTx(ctx, t.tx, key, false)
}

func (t *sqliteTransaction) UpsertOverrideByFingerprint(ctx context.Context, fingerprint, category, exampleMerchant string) error {
	return t.upsertOverride(ctx, overrideKey{kind: model.OverrideByFingerprint, key: fingerprint}, category, exampleMerchant)
}

func (t *sqliteTransaction) UpsertOverrideByStem(ctx context.Context, stem, category, exampleMerchant string) error {
	return t.upsertOverride(ctx, overrideKey{kind: model.OverrideByStem, key: stem}, category, exampleMerchant)
}

func (t *sqliteTransaction) upsertOverride(ctx context.Context, key overrideKey, category, exampleMerchant string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	stored, err := t.storage.upsertOverrideTx(ctx, t.tx, t, key, category, exampleMerchant)
	if err != nil || stored == "" {
		return err
	}
	t.pending[key] = stored
	return nil
}

func (t *sqliteTransaction) ListOverrides(ctx context.Context) ([]model.OverrideEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listOverridesTx(ctx, t.tx, model.OverrideByFingerprint)
}

func (t *sqliteTransaction) ListCustomCategories(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listCustomCategoriesTx(ctx, t.tx)
}

func (t *sqliteTransaction) AddCustomCategory(ctx context.Context, name string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	return t.storage.addCustomCategoryTx(ctx, t.tx, name)
}

func (t *sqliteTransaction) RemoveCustomCategory(ctx context.Context, name string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return t.storage.removeCustomCategoryTx(ctx, t.tx, name)
}

func (t *sqliteTransaction) IsCustomCategory(ctx context.Context, name string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return t.storage.isCustomCategoryTx(ctx, t.tx, name)
}

// wrapDBError maps SQLite lock contention onto common.ErrStoreBusy so callers can retry.
func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", common.ErrStoreBusy, err)
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB:
			return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
		case sqlite3.ErrCorrupt:
			return fmt.Errorf("%w: %w", common.ErrDatabaseCorrupted, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}
	if err.Error() == "sql: database is closed" {
		return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}
	return err
}
