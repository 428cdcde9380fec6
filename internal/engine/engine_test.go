package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sorter/internal/classification"
	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/merchant"
	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/testutil"
)

func newTestClassifier(t *testing.T, customCategories ...string) (*Classifier, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t, customCategories...)
	return New(db.Storage, db.Storage), db
}

func TestClassifier_FallbackFloor(t *testing.T) {
	c, _ := newTestClassifier(t)

	result, err := c.Classify(context.Background(), testutil.NewTransaction("t1", "XQZW 9981", "-12.00", "2024-01-01"))
	require.NoError(t, err)

	assert.Equal(t, "UNCATEGORIZED", result.Category)
	assert.Equal(t, model.SourceFallback, result.Source)
	assert.InDelta(t, model.FallbackConfidence, result.Confidence, 0.0001)
	assert.Empty(t, result.MatchedRuleID)
	assert.NotEmpty(t, result.Fingerprint)
}

func TestClassifier_RuleMatch(t *testing.T) {
	c, _ := newTestClassifier(t)

	result, err := c.Classify(context.Background(), testutil.NewTransaction("t1", "EASY PARK", "-5.00", "2024-01-15"))
	require.NoError(t, err)

	assert.Equal(t, "PARKING", result.Category)
	assert.Equal(t, model.SourceRule, result.Source)
	assert.Equal(t, "easypark_parking", result.MatchedRuleID)
	assert.InDelta(t, 0.95, result.Confidence, 0.0001)
	assert.Equal(t, []string{"easypark_parking"}, result.MatchedSignals)
}

func TestClassifier_RuleOrderingSalaryBeforeIncome(t *testing.T) {
	c, _ := newTestClassifier(t)

	result, err := c.Classify(context.Background(), testutil.NewTransaction("t1", "ACME SPA SALARY JAN", "2500.00", "2024-01-27"))
	require.NoError(t, err)

	assert.Equal(t, "INCOME_SALARY", result.Category)
	assert.Equal(t, "salary_keywords", result.MatchedRuleID)
}

func TestClassifier_OverridePrecedence(t *testing.T) {
	c, _ := newTestClassifier(t)
	ctx := context.Background()

	first := testutil.NewTransaction("t1", "NETFLIX", "-12.99", "2024-01-05")
	result, err := c.Apply(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "SUBSCRIPTIONS", result.Category)

	require.NoError(t, c.RecordUserCategory(ctx, first, "ENTERTAINMENT"))
	assert.Equal(t, "ENTERTAINMENT", first.Category)
	assert.Equal(t, model.SourceOverride, first.Classification.Source)
	assert.InDelta(t, 1.0, first.Classification.Confidence, 0.0001)
	assert.Empty(t, first.Classification.MatchedRuleID)

	second := testutil.NewTransaction("t2", "NETFLIX", "-15.99", "2024-02-05")
	result, err = c.Classify(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, "ENTERTAINMENT", result.Category)
	assert.Equal(t, model.SourceOverride, result.Source)
	assert.InDelta(t, 1.0, result.Confidence, 0.0001)
	assert.Equal(t, []string{SignalFingerprintOverride}, result.MatchedSignals)
}

func TestClassifier_StemGeneralization(t *testing.T) {
	c, db := newTestClassifier(t)
	ctx := context.Background()

	first := testutil.NewTransaction("t1", "ESSELUNGA 00412", "-40.00", "2024-01-05")
	require.NoError(t, c.RecordUserCategory(ctx, first, "DINING"))

	second := testutil.NewTransaction("t2", "ESSELUNGA 00877", "-22.00", "2024-01-09")
	require.NotEqual(t, merchant.Fingerprint(first), merchant.Fingerprint(second))

	result, err := c.Classify(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "DINING", result.Category)
	assert.Equal(t, model.SourceOverride, result.Source)
	assert.Equal(t, "ESSELUNGA", result.Stem)
	assert.Equal(t, []string{SignalStemOverride}, result.MatchedSignals)

	// An exact fingerprint override beats the stem.
	require.NoError(t, db.Storage.UpsertOverrideByFingerprint(ctx, merchant.Fingerprint(second), "GROCERIES", "ESSELUNGA 00877"))
	result, err = c.Classify(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "GROCERIES", result.Category)
	assert.Empty(t, result.Stem)
}

func TestClassifier_EndToEndEasyPark(t *testing.T) {
	c, db := newTestClassifier(t)
	ctx := context.Background()

	first := testutil.NewTransaction("t1", "EASY PARK", "-5.00", "2024-01-15")
	result, err := c.Apply(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "PARKING", result.Category)
	assert.Equal(t, model.SourceRule, result.Source)
	assert.Equal(t, "easypark_parking", result.MatchedRuleID)
	db.MustInsert(first)

	require.NoError(t, c.RecordUserCategory(ctx, first, "TRANSPORT_PUBLIC"))

	category, found, err := db.Storage.GetOverrideByFingerprint(ctx, first.Classification.Fingerprint)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "TRANSPORT_PUBLIC", category)

	category, found, err = db.Storage.GetOverrideByStem(ctx, "EASYPARK")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "TRANSPORT_PUBLIC", category)

	second := testutil.NewTransaction("t2", "EASY-PARK BERLIN", "-3.50", "2024-02-01")
	result, err = c.Apply(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "TRANSPORT_PUBLIC", second.Category)
	assert.Equal(t, model.SourceOverride, result.Source)
	assert.Equal(t, "EASYPARK", result.Stem, "hit must come from the stem, not the exact fingerprint")
	assert.Empty(t, result.MatchedRuleID)
}

func TestClassifier_ApplyShortCircuit(t *testing.T) {
	c, _ := newTestClassifier(t, "Pets")
	ctx := context.Background()

	tests := []struct {
		name       string
		category   string
		wantCat    string
		wantSource model.Source
	}{
		{name: "builtin kept", category: "GROCERIES", wantCat: "GROCERIES", wantSource: model.SourceImport},
		{name: "custom kept", category: "Pets", wantCat: "Pets", wantSource: model.SourceImport},
		{name: "fallback is classified", category: "UNCATEGORIZED", wantCat: "PARKING", wantSource: model.SourceRule},
		{name: "empty is classified", category: "", wantCat: "PARKING", wantSource: model.SourceRule},
		{name: "invalid is classified", category: "NotARealCategory", wantCat: "PARKING", wantSource: model.SourceRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := testutil.NewTransaction("t", "EASYPARK", "-2.00", "2024-01-01")
			txn.Category = tt.category

			result, err := c.Apply(ctx, txn)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCat, txn.Category)
			assert.Equal(t, tt.wantSource, txn.Classification.Source)
			assert.Equal(t, tt.wantSource, result.Source)
			assert.NotEmpty(t, txn.Classification.Fingerprint)
			if tt.wantSource == model.SourceImport {
				assert.InDelta(t, model.ImportConfidence, result.Confidence, 0.0001)
			}
		})
	}
}

func TestClassifier_ConfidenceInvariant(t *testing.T) {
	c, _ := newTestClassifier(t)
	ctx := context.Background()

	merchants := []string{"EASY PARK", "NETFLIX", "Unknown shop", "ATM 1", "Salary ACME", ""}
	for _, m := range merchants {
		result, err := c.Classify(ctx, testutil.NewTransaction("t", m, "-1", "2024-01-01"))
		require.NoError(t, err)
		assert.Equal(t, result.Source == model.SourceOverride, result.Confidence == 1.0, m)
	}
}

func TestClassifier_RecordUserCategoryCoerces(t *testing.T) {
	c, db := newTestClassifier(t)
	ctx := context.Background()

	txn := testutil.NewTransaction("t1", "Corner Shop 12", "-3", "2024-01-01")
	require.NoError(t, c.RecordUserCategory(ctx, txn, "NotARealCategory"))
	assert.Equal(t, "UNCATEGORIZED", txn.Category)

	category, found, err := db.Storage.GetOverrideByStem(ctx, "CORNER")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "UNCATEGORIZED", category)
}

func TestClassifier_RecordUserCategoryReusesFingerprint(t *testing.T) {
	store := &mockOverrideStore{}
	c := New(store, nil)
	ctx := context.Background()

	txn := testutil.NewTransaction("t1", "Cafe Roma", "-3", "2024-01-01")
	txn.Classification.Fingerprint = "stored-fingerprint"

	store.On("UpsertOverrideByFingerprint", ctx, "stored-fingerprint", "DINING", "Cafe Roma").Return(nil).Once()
	store.On("UpsertOverrideByStem", ctx, "CAFE", "DINING", "Cafe Roma").Return(nil).Once()

	require.NoError(t, c.RecordUserCategory(ctx, txn, "DINING"))
	store.AssertExpectations(t)
}

func TestClassifier_ShortStemIsNotRecorded(t *testing.T) {
	store := &mockOverrideStore{}
	c := New(store, nil)
	ctx := context.Background()

	txn := testutil.NewTransaction("t1", "X 42", "-3", "2024-01-01")
	store.On("UpsertOverrideByFingerprint", ctx, mock.Anything, "OTHER", "X 42").Return(nil).Once()

	require.NoError(t, c.RecordUserCategory(ctx, txn, "OTHER"))
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "UpsertOverrideByStem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClassifier_StoreFailuresPropagate(t *testing.T) {
	outage := errors.New("disk gone")
	ctx := context.Background()

	t.Run("fingerprint lookup", func(t *testing.T) {
		store := &mockOverrideStore{}
		store.On("GetOverrideByFingerprint", ctx, mock.Anything).Return("", false, outage)

		_, err := New(store, nil).Classify(ctx, testutil.NewTransaction("t", "EASY PARK", "-1", "2024-01-01"))
		require.ErrorIs(t, err, outage)
	})

	t.Run("stem lookup", func(t *testing.T) {
		store := &mockOverrideStore{}
		store.On("GetOverrideByFingerprint", ctx, mock.Anything).Return("", false, nil)
		store.On("GetOverrideByStem", ctx, "EASYPARK").Return("", false, outage)

		txn := testutil.NewTransaction("t", "EASY PARK", "-1", "2024-01-01")
		_, err := New(store, nil).Apply(ctx, txn)
		require.ErrorIs(t, err, outage)
		assert.Empty(t, txn.Category, "failed classification must not annotate the transaction")
	})

	t.Run("upsert", func(t *testing.T) {
		store := &mockOverrideStore{}
		store.On("UpsertOverrideByFingerprint", ctx, mock.Anything, mock.Anything, mock.Anything).Return(outage)

		txn := testutil.NewTransaction("t", "EASY PARK", "-1", "2024-01-01")
		err := New(store, nil).RecordUserCategory(ctx, txn, "PARKING")
		require.ErrorIs(t, err, outage)
		assert.Empty(t, txn.Category)
	})

	t.Run("closed database", func(t *testing.T) {
		c, db := newTestClassifier(t)
		require.NoError(t, db.Storage.Close())

		_, err := c.Classify(ctx, testutil.NewTransaction("t", "EASY PARK", "-1", "2024-01-01"))
		require.ErrorIs(t, err, common.ErrStoreUnavailable)
	})
}

func TestClassifier_PanickingRuleFallsThrough(t *testing.T) {
	db := testutil.SetupTestDB(t)
	table := classification.MustNewTable([]classification.Rule{
		{ID: "explodes", Category: model.CategoryOther, Confidence: 0.9, Match: func(classification.Input) bool {
			panic("bad rule")
		}},
	})
	c := New(db.Storage, db.Storage, WithRules(table))

	result, err := c.Classify(context.Background(), testutil.NewTransaction("t", "Anything", "-1", "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, model.SourceFallback, result.Source)
}

func TestClassifier_DryRunIsPure(t *testing.T) {
	c, db := newTestClassifier(t)
	ctx := context.Background()

	txn := testutil.NewTransaction("t1", "EASY PARK", "-5.00", "2024-01-15")
	txn.Category = "GROCERIES"

	result, err := c.Classify(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, "PARKING", result.Category, "classify ignores the stored category")
	assert.Equal(t, "GROCERIES", txn.Category, "classify never annotates")

	entries, err := db.Storage.ListOverrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
