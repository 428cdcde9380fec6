// Package testutil provides shared helpers for tests that need a real database.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/service"
	"github.com/Veraticus/spice-sorter/internal/storage"
)

// TestDB represents a migrated in-memory test database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database and registers the given
// custom categories. The database is closed when the test finishes.
//
// Example:
//
//	db := testutil.SetupTestDB(t, "Pets")
func SetupTestDB(t *testing.T, customCategories ...string) *TestDB {
	t.Helper()

	ctx := context.Background()
	store, err := storage.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	for _, name := range customCategories {
		if _, err := store.AddCustomCategory(ctx, name); err != nil {
			t.Fatalf("failed to seed category %q: %v", name, err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// WithTransaction executes fn inside a database transaction that is always rolled back.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// MustInsert stores transactions as-is, failing the test on error.
func (db *TestDB) MustInsert(txns ...*model.Transaction) {
	db.t.Helper()
	for _, txn := range txns {
		require.NoError(db.t, db.Storage.InsertTransaction(context.Background(), txn))
	}
}

// MustGet loads a transaction, failing the test when it is missing.
func (db *TestDB) MustGet(id string) *model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransaction(context.Background(), id)
	require.NoError(db.t, err)
	return txn
}

// NewTransaction builds an unclassified transaction. amount and date must be valid.
func NewTransaction(id, merchant, amount, date string) *model.Transaction {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad date %q: %v", date, err))
	}
	return &model.Transaction{
		ID:       id,
		Merchant: merchant,
		Amount:   decimal.RequireFromString(amount),
		Date:     d,
		Channel:  model.ChannelOneTime,
	}
}
