package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/engine"
	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/service"
	"github.com/Veraticus/spice-sorter/internal/testutil"
)

func newTestLedger(t *testing.T, customCategories ...string) (*Service, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t, customCategories...)
	return New(db.Storage, engine.New(db.Storage, db.Storage)), db
}

func strPtr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	svc, db := newTestLedger(t)
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	t.Run("fills defaults and classifies", func(t *testing.T) {
		created, err := svc.Create(ctx, &model.Transaction{
			Merchant: "EASY PARK",
			Amount:   decimal.RequireFromString("-5.00"),
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(created.ID, "tx-"))
		assert.Equal(t, "2024-03-09", created.DateString())
		assert.Equal(t, model.ChannelOneTime, created.Channel)
		assert.Equal(t, DefaultStatus, created.Status)
		assert.Equal(t, "PARKING", created.Category)
		assert.Equal(t, model.SourceRule, created.Classification.Source)

		stored := db.MustGet(created.ID)
		assert.Equal(t, created.Category, stored.Category)
		assert.Equal(t, "easypark_parking", stored.Classification.MatchedRuleID)
	})

	t.Run("explicit category is imported", func(t *testing.T) {
		created, err := svc.Create(ctx, &model.Transaction{
			ID:       "manual-1",
			Merchant: "Corner shop",
			Amount:   decimal.RequireFromString("-3"),
			Category: "GROCERIES",
		})
		require.NoError(t, err)
		assert.Equal(t, "manual-1", created.ID)
		assert.Equal(t, model.SourceImport, db.MustGet("manual-1").Classification.Source)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := svc.Create(ctx, &model.Transaction{ID: "manual-1", Merchant: "x"})
		require.ErrorIs(t, err, common.ErrDuplicateEntry)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := svc.Create(ctx, nil)
		require.ErrorIs(t, err, common.ErrInvalidTransaction)
	})
}

func TestSetCategory(t *testing.T) {
	svc, db := newTestLedger(t)
	ctx := context.Background()

	db.MustInsert(testutil.NewTransaction("t1", "ESSELUNGA 00412", "-40", "2024-01-05"))

	updated, err := svc.SetCategory(ctx, "t1", "DINING")
	require.NoError(t, err)
	assert.Equal(t, "DINING", updated.Category)
	assert.Equal(t, model.SourceOverride, updated.Classification.Source)
	assert.InDelta(t, 1.0, updated.Classification.Confidence, 0.0001)

	stored := db.MustGet("t1")
	assert.Equal(t, "DINING", stored.Category)
	assert.Equal(t, model.SourceOverride, stored.Classification.Source)
	assert.NotEmpty(t, stored.Classification.Fingerprint)

	category, found, err := db.Storage.GetOverrideByStem(ctx, "ESSELUNGA")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "DINING", category)

	created, err := svc.Create(ctx, &model.Transaction{Merchant: "ESSELUNGA 00877", Amount: decimal.RequireFromString("-9")})
	require.NoError(t, err)
	assert.Equal(t, "DINING", created.Category)

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.SetCategory(ctx, "missing", "DINING")
		require.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("invalid category is coerced", func(t *testing.T) {
		updated, err := svc.SetCategory(ctx, "t1", "Nope")
		require.NoError(t, err)
		assert.Equal(t, "UNCATEGORIZED", updated.Category)
	})
}

func TestUpdate(t *testing.T) {
	svc, db := newTestLedger(t)
	ctx := context.Background()

	original, err := svc.Create(ctx, &model.Transaction{
		ID:       "t1",
		Merchant: "NETFLIX",
		Amount:   decimal.RequireFromString("-12.99"),
		Date:     time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "SUBSCRIPTIONS", original.Category)

	t.Run("missing returns nil", func(t *testing.T) {
		updated, err := svc.Update(ctx, "missing", model.TransactionPatch{Merchant: strPtr("x")})
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("unchanged category records nothing", func(t *testing.T) {
		amount := decimal.RequireFromString("-15.99")
		updated, err := svc.Update(ctx, "t1", model.TransactionPatch{Amount: &amount, Category: strPtr("SUBSCRIPTIONS")})
		require.NoError(t, err)
		assert.True(t, amount.Equal(updated.Amount))
		assert.Equal(t, model.SourceRule, updated.Classification.Source)

		entries, err := db.Storage.ListOverrides(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("signature change refreshes fingerprint", func(t *testing.T) {
		updated, err := svc.Update(ctx, "t1", model.TransactionPatch{Merchant: strPtr("Spotify")})
		require.NoError(t, err)
		assert.NotEqual(t, original.Classification.Fingerprint, updated.Classification.Fingerprint)
		assert.Equal(t, svc.Classifier().Normalizer().Fingerprint(updated), updated.Classification.Fingerprint)
	})

	t.Run("changed category is a manual edit", func(t *testing.T) {
		updated, err := svc.Update(ctx, "t1", model.TransactionPatch{Category: strPtr("ENTERTAINMENT")})
		require.NoError(t, err)
		assert.Equal(t, "ENTERTAINMENT", updated.Category)
		assert.Equal(t, model.SourceOverride, updated.Classification.Source)

		category, found, err := db.Storage.GetOverrideByStem(ctx, "SPOTIFY")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "ENTERTAINMENT", category)
	})
}

func TestDelete(t *testing.T) {
	svc, db := newTestLedger(t)
	ctx := context.Background()

	db.MustInsert(
		testutil.NewTransaction("a", "A shop", "-1", "2024-01-01"),
		testutil.NewTransaction("b", "B shop", "-1", "2024-01-02"),
		testutil.NewTransaction("c", "C shop", "-1", "2024-01-03"),
	)

	deleted, err := svc.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, deleted)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)

	count, err := svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = svc.Get(ctx, "b")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestOverridesRollBackWithTransaction(t *testing.T) {
	svc, db := newTestLedger(t)
	ctx := context.Background()
	txn := testutil.NewTransaction("t1", "ESSELUNGA 00412", "-40", "2024-01-05")

	err := db.WithTransaction(func(tx service.Transaction) error {
		bound := svc.Classifier().Bind(tx)
		require.NoError(t, bound.RecordUserCategory(ctx, txn, "DINING"))

		result, err := bound.Classify(ctx, testutil.NewTransaction("t2", "ESSELUNGA 00877", "-9", "2024-01-06"))
		require.NoError(t, err)
		assert.Equal(t, "DINING", result.Category)
		assert.Equal(t, model.SourceOverride, result.Source)
		return nil
	})
	require.NoError(t, err)

	_, found, err := db.Storage.GetOverrideByStem(ctx, "ESSELUNGA")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReplaceCategory(t *testing.T) {
	svc, db := newTestLedger(t)
	ctx := context.Background()

	txn := testutil.NewTransaction("t1", "ESSELUNGA 00412", "-40", "2024-01-05")
	txn.Category = "OTHER"
	db.MustInsert(txn)

	_, changed, err := svc.ReplaceCategory(ctx, "t1", "DINING", "GROCERIES")
	require.ErrorIs(t, err, common.ErrConflict)
	assert.False(t, changed)
	assert.Equal(t, "OTHER", db.MustGet("t1").Category)

	updated, changed, err := svc.ReplaceCategory(ctx, "t1", "OTHER", "GROCERIES")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "GROCERIES", updated.Category)
	assert.Equal(t, model.SourceOverride, db.MustGet("t1").Classification.Source)

	_, changed, err = svc.ReplaceCategory(ctx, "t1", "OTHER", "GROCERIES")
	require.NoError(t, err)
	assert.False(t, changed, "already holds the category")

	_, _, err = svc.ReplaceCategory(ctx, "missing", "OTHER", "GROCERIES")
	require.ErrorIs(t, err, common.ErrNotFound)
}
