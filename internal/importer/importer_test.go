package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/engine"
	"github.com/Veraticus/spice-sorter/internal/ledger"
	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/testutil"
)

const statement = `Date,Partner,Amount,Category
2024-01-15,EASY PARK,-5.00,
2024-01-16,Netflix,-14.99,Food & Dining
2024-01-17,Corner Shop,-3.00,GROCERIES
2024-01-15,EASY PARK,-5.00,
`

func setupImporter(t *testing.T, opts ...Option) (*Importer, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	l := ledger.New(db.Storage, engine.New(db.Storage, db.Storage))
	return New(l, opts...), db
}

func parseStatement(t *testing.T) []model.ImportRow {
	t.Helper()
	rows, err := Parse(context.Background(), strings.NewReader(statement), FormatCSV)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	return rows
}

func TestCommit(t *testing.T) {
	var progress bytes.Buffer
	im, db := setupImporter(t, WithProgressWriter(&progress))
	ctx := context.Background()
	rows := parseStatement(t)

	report, err := im.Commit(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	require.Len(t, report.Inserted, 3)
	assert.Equal(t, []string{rows[0].Transaction.ID}, report.Duplicates, "repeated row in the same file collapses")
	assert.Empty(t, report.Failed)
	assert.NotEmpty(t, progress.String())

	parking := db.MustGet(rows[0].Transaction.ID)
	assert.Equal(t, "PARKING", parking.Category)
	assert.Equal(t, model.SourceRule, parking.Classification.Source)

	netflix := db.MustGet(rows[1].Transaction.ID)
	assert.Equal(t, "SUBSCRIPTIONS", netflix.Category, "invalid statement category is classified instead")

	shop := db.MustGet(rows[2].Transaction.ID)
	assert.Equal(t, "GROCERIES", shop.Category)
	assert.Equal(t, model.SourceImport, shop.Classification.Source)
}

func TestCommit_ReimportIsIdempotent(t *testing.T) {
	im, db := setupImporter(t)
	ctx := context.Background()

	_, err := im.Commit(ctx, parseStatement(t))
	require.NoError(t, err)

	report, err := im.Commit(ctx, parseStatement(t))
	require.NoError(t, err)
	assert.Empty(t, report.Inserted)
	assert.Len(t, report.Duplicates, 4)

	all, err := db.Storage.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCommit_UsesLearnedOverrides(t *testing.T) {
	im, db := setupImporter(t)
	ctx := context.Background()

	require.NoError(t, db.Storage.UpsertOverrideByStem(ctx, "EASYPARK", "TRANSPORT_PUBLIC", "EASY PARK"))

	report, err := im.Commit(ctx, parseStatement(t))
	require.NoError(t, err)
	assert.Equal(t, "TRANSPORT_PUBLIC", report.Inserted[0].Category)
	assert.Equal(t, model.SourceOverride, report.Inserted[0].Classification.Source)
}

func TestCommit_StoreFailureStops(t *testing.T) {
	im, db := setupImporter(t)
	require.NoError(t, db.Storage.Close())

	_, err := im.Commit(context.Background(), parseStatement(t))
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestPreview(t *testing.T) {
	im, db := setupImporter(t)
	ctx := context.Background()
	rows := parseStatement(t)

	existing := rows[1].Transaction
	db.MustInsert(&existing)

	preview, err := im.Preview(ctx, rows)
	require.NoError(t, err)
	require.Len(t, preview, 4)

	assert.False(t, preview[0].Duplicate)
	assert.True(t, preview[1].Duplicate)
	assert.False(t, preview[2].Duplicate)
	assert.True(t, preview[3].Duplicate)

	for _, row := range preview {
		assert.Empty(t, row.Transaction.Classification.Source, "preview never classifies")
	}
	assert.Equal(t, "GROCERIES", preview[2].Transaction.Category)

	all, err := db.Storage.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "preview writes nothing")
}

func TestFormats(t *testing.T) {
	tests := []struct {
		file string
		want Format
	}{
		{file: "export.CSV", want: FormatCSV},
		{file: "ListaMovimenti.xlsx", want: FormatXLSX},
		{file: "bank.qfx", want: FormatOFX},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.file)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := DetectFormat("notes.pdf")
	require.ErrorIs(t, err, common.ErrUnsupportedFormat)

	f, err := ParseFormat(" BCC ")
	require.NoError(t, err)
	assert.Equal(t, FormatBCC, f)

	_, err = ParseFormat("json")
	require.ErrorIs(t, err, common.ErrUnsupportedFormat)

	_, err = ParserFor(Format("json"))
	require.ErrorIs(t, err, common.ErrUnsupportedFormat)
}
