package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/model"
)

// BCC credit card statement columns.
const (
	bccPurchaseDate   = "DATA ACQUISTO"
	bccRegisteredDate = "DATA REGISTR."
	bccDescription    = "DESCRIZIONE DELLE OPERAZIONI"
	bccAmountEUR      = "IMPORTO IN EURO"
	bccPaymentMethod  = "BCC"
)

// XLSXParser reads the first sheet of a workbook. With bcc set it expects the
// BCC credit card statement layout; otherwise it maps columns like CSVParser.
// When bcc is unset and the header row looks like a BCC statement, the BCC
// layout is used anyway.
type XLSXParser struct {
	bcc bool
}

// NewXLSXParser creates a parser for generic workbooks.
func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

// NewBCCParser creates a parser for BCC credit card statements.
func NewBCCParser() *XLSXParser {
	return &XLSXParser{bcc: true}
}

// Parse implements Parser.
func (p *XLSXParser) Parse(ctx context.Context, r io.Reader) ([]model.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable workbook: %w", common.ErrUnsupportedFormat, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("Failed to close workbook", "error", closeErr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", common.ErrEmptyStatement)
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", common.ErrEmptyStatement, sheets[0])
	}

	headers := grid[0]
	if p.bcc || isBCCHeader(headers) {
		return parseBCCRows(ctx, headers, grid[1:])
	}

	today := startOfDay(now())
	var rows []model.ImportRow
	for i, values := range grid[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := newRecord(headers, values)
		if rec.empty() {
			continue
		}
		rows = append(rows, model.ImportRow{Transaction: rec.toTransaction(today), Line: i + 2})
	}
	return rows, nil
}

func isBCCHeader(headers []string) bool {
	for _, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), bccDescription) {
			return true
		}
	}
	return false
}

// parseBCCRows maps statement rows by exact header. Rows without a usable
// date are skipped.
func parseBCCRows(ctx context.Context, headers []string, grid [][]string) ([]model.ImportRow, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	cell := func(values []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(values) {
			return ""
		}
		return strings.TrimSpace(values[i])
	}

	var rows []model.ImportRow
	for i, values := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stamp := cell(values, bccPurchaseDate)
		if stamp == "" {
			stamp = cell(values, bccRegisteredDate)
		}
		date, timeOfDay, ok := parseBCCDateTime(stamp)
		if !ok {
			if stamp != "" {
				slog.Debug("Skipping BCC row with unreadable date", "line", i+2, "value", stamp)
			}
			continue
		}

		merchant := cell(values, bccDescription)
		if merchant == "" {
			merchant = UnknownMerchant
		}
		amount := parseAmount(cell(values, bccAmountEUR))

		txn := model.Transaction{
			Date:          date,
			Time:          timeOfDay,
			Amount:        amount,
			Merchant:      merchant,
			Channel:       model.ChannelOneTime,
			PaymentMethod: bccPaymentMethod,
			Status:        DefaultStatus,
		}
		txn.ID = StableID(txn.DateString(), txn.Time, txn.Amount, txn.Merchant)
		rows = append(rows, model.ImportRow{Transaction: txn, Line: i + 2})
	}
	return rows, nil
}

var bccDatePattern = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})[/.](\d{2}|\d{4})$`)

// parseBCCDateTime reads "dd/mm/yyyy" with an optional "hh:mm[:ss]" suffix,
// falling back to RFC 3339 timestamps.
func parseBCCDateTime(s string) (time.Time, string, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return time.Time{}, "", false
	}

	if m := bccDatePattern.FindStringSubmatch(fields[0]); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		date, err := time.Parse("2006-1-2", year+"-"+m[2]+"-"+m[1])
		if err != nil {
			return time.Time{}, "", false
		}
		timeOfDay := ""
		if len(fields) > 1 {
			timeOfDay = PadTime(strings.Join(fields[1:], " "))
		}
		return date, timeOfDay, true
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return startOfDay(t), t.Format("15:04:05"), true
	}
	if date, ok := parseDate(s); ok {
		return date, "", true
	}
	return time.Time{}, "", false
}
