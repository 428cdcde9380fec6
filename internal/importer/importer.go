// Package importer parses bank statements into transactions with stable ids
// and feeds new rows through the ledger. Re-importing a statement, or an
// overlapping export, never creates duplicates.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/spice-sorter/internal/cli"
	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/ledger"
	"github.com/Veraticus/spice-sorter/internal/model"
)

// Format names a statement layout.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatBCC  Format = "bcc"
	FormatOFX  Format = "ofx"
)

var now = time.Now

// Parser turns a statement into rows. Parsing never classifies.
type Parser interface {
	Parse(ctx context.Context, r io.Reader) ([]model.ImportRow, error)
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatCSV, FormatXLSX, FormatBCC, FormatOFX:
		return f, nil
	case "qfx":
		return FormatOFX, nil
	case "xls":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, name)
}

// DetectFormat guesses the format from a file name.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xls":
		return FormatXLSX, nil
	case ".ofx", ".qfx":
		return FormatOFX, nil
	}
	return "", fmt.Errorf("%w: cannot detect format of %q", common.ErrUnsupportedFormat, filename)
}

// ParserFor returns the parser for format.
func ParserFor(format Format) (Parser, error) {
	switch format {
	case FormatCSV:
		return NewCSVParser(), nil
	case FormatXLSX:
		return NewXLSXParser(), nil
	case FormatBCC:
		return NewBCCParser(), nil
	case FormatOFX:
		return NewOFXParser(), nil
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, format)
}

// Parse reads r with the parser for format.
func Parse(ctx context.Context, r io.Reader, format Format) ([]model.ImportRow, error) {
	parser, err := ParserFor(format)
	if err != nil {
		return nil, err
	}
	return parser.Parse(ctx, r)
}

// Importer writes parsed rows through a ledger.
type Importer struct {
	ledger   *ledger.Service
	progress io.Writer
}

// Option configures an Importer.
type Option func(*Importer)

// WithProgressWriter renders a progress bar to w during Commit.
func WithProgressWriter(w io.Writer) Option {
	return func(i *Importer) {
		i.progress = w
	}
}

// New creates an importer.
func New(l *ledger.Service, opts ...Option) *Importer {
	im := &Importer{ledger: l}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Preview flags rows whose id is already stored or repeats an earlier row in
// the same statement. Rows are returned as parsed, without classification.
func (im *Importer) Preview(ctx context.Context, rows []model.ImportRow) ([]model.ImportRow, error) {
	out := make([]model.ImportRow, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		out[i] = row
		id := row.Transaction.ID
		if _, dup := seen[id]; dup {
			out[i].Duplicate = true
			continue
		}
		seen[id] = struct{}{}

		exists, err := im.ledger.Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", id, err)
		}
		out[i].Duplicate = exists
	}
	return out, nil
}

// Commit inserts every row whose id is not yet stored. Each new row is
// classified exactly once, on insert; an explicit category from the
// statement is coerced and kept. A row that fails validation is reported and
// skipped; a store failure stops the import.
func (im *Importer) Commit(ctx context.Context, rows []model.ImportRow) (*model.ImportReport, error) {
	report := &model.ImportReport{Total: len(rows)}
	bar := cli.NewProgressBar(im.progress, len(rows), "Importing transactions...")

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		cli.Step(bar)

		txn := row.Transaction
		if _, dup := seen[txn.ID]; dup {
			report.Duplicates = append(report.Duplicates, txn.ID)
			continue
		}
		seen[txn.ID] = struct{}{}

		exists, err := im.ledger.Exists(ctx, txn.ID)
		if err != nil {
			return report, fmt.Errorf("failed to check %s: %w", txn.ID, err)
		}
		if exists {
			report.Duplicates = append(report.Duplicates, txn.ID)
			continue
		}

		created, err := im.ledger.Create(ctx, &txn)
		switch {
		case err == nil:
			report.Inserted = append(report.Inserted, *created)
		case errors.Is(err, common.ErrDuplicateEntry):
			report.Duplicates = append(report.Duplicates, txn.ID)
		case errors.Is(err, common.ErrStoreUnavailable), errors.Is(err, common.ErrDatabaseCorrupted):
			return report, err
		default:
			slog.Warn("Skipping import row", "line", row.Line, "id", txn.ID, "error", err)
			report.Failed = append(report.Failed, model.ApplyFailure{TransactionID: txn.ID, Err: err})
		}
	}

	cli.Finish(bar)
	common.LogInfo(ctx, "Import complete", common.Fields{
		"total":      report.Total,
		"inserted":   len(report.Inserted),
		"duplicates": len(report.Duplicates),
		"failed":     len(report.Failed),
	})
	return report, nil
}
