package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sorter/internal/model"
)

func TestRenderChanges(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var out strings.Builder
		require.NoError(t, RenderChanges(&out, nil))
		assert.Contains(t, out.String(), "No changes suggested")
	})

	t.Run("rows", func(t *testing.T) {
		var out strings.Builder
		changes := []model.Change{{
			Date:              time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			TransactionID:     "p1",
			Merchant:          "EASYPARK ITALIA",
			CurrentCategory:   "OTHER",
			SuggestedCategory: "PARKING",
			Source:            model.SourceRule,
			MatchedRuleID:     "easypark_parking",
			Confidence:        0.95,
		}}
		require.NoError(t, RenderChanges(&out, changes))

		s := out.String()
		assert.Contains(t, s, "2024-03-01")
		assert.Contains(t, s, "EASYPARK ITALIA")
		assert.Contains(t, s, "PARKING")
		assert.Contains(t, s, "easypark_parking")
		assert.Contains(t, s, "0.95")
		assert.Contains(t, s, "1 change(s) suggested")
	})
}

func TestRenderTransactions(t *testing.T) {
	var out strings.Builder
	txns := []model.Transaction{{
		ID:       "tx-1",
		Date:     time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Merchant: "NETFLIX.COM",
		Amount:   decimal.RequireFromString("-12.99"),
		Category: "SUBSCRIPTIONS",
		Classification: model.Classification{
			Source:     model.SourceRule,
			Confidence: 0.9,
		},
	}}
	require.NoError(t, RenderTransactions(&out, txns))

	s := out.String()
	assert.Contains(t, s, "tx-1")
	assert.Contains(t, s, "-12.99")
	assert.Contains(t, s, "SUBSCRIPTIONS")
}

func TestRenderOverrides(t *testing.T) {
	var out strings.Builder
	require.NoError(t, RenderOverrides(&out, []model.OverrideEntry{{
		Kind:      model.OverrideByStem,
		Key:       "ESSELUNGA",
		Category:  "GROCERIES",
		UpdatedAt: time.Date(2024, 2, 2, 10, 30, 0, 0, time.UTC),
	}}))

	s := out.String()
	assert.Contains(t, s, "stem")
	assert.Contains(t, s, "ESSELUNGA")
	assert.Contains(t, s, "2024-02-02 10:30")
	assert.Contains(t, s, " - ")
}

func TestRenderReports(t *testing.T) {
	var out strings.Builder
	require.NoError(t, RenderApplyReport(&out, &model.ApplyReport{
		Applied:   []string{"a", "b"},
		Unchanged: []string{"c"},
		Failed:    []model.ApplyFailure{{TransactionID: "d", Err: errors.New("boom")}},
	}))
	s := out.String()
	assert.Contains(t, s, "Applied 2 change(s)")
	assert.Contains(t, s, "1 already up to date")
	assert.Contains(t, s, "d: boom")

	out.Reset()
	require.NoError(t, RenderImportReport(&out, &model.ImportReport{
		Inserted:   make([]model.Transaction, 3),
		Duplicates: []string{"x"},
		Total:      4,
	}))
	s = out.String()
	assert.Contains(t, s, "Imported 3 of 4 row(s)")
	assert.Contains(t, s, "1 duplicate(s) skipped")
	assert.NotContains(t, s, "failed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ÀÈÌ…", truncate("ÀÈÌÒÙ", 4))
}
