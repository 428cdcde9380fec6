package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/model"
)

// CSVParser reads bank-style CSV exports with a header row. The delimiter
// (comma, semicolon or tab) is detected from the header line.
type CSVParser struct{}

// NewCSVParser creates a CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse implements Parser.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader) ([]model.ImportRow, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("%w: empty CSV", common.ErrEmptyStatement)
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = detectDelimiter(content)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	today := startOfDay(now())
	var rows []model.ImportRow
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV line %d: %w", line, err)
		}

		rec := newRecord(headers, values)
		if rec.empty() {
			continue
		}
		rows = append(rows, model.ImportRow{Transaction: rec.toTransaction(today), Line: line})
	}
	return rows, nil
}

// detectDelimiter picks the most frequent of comma, semicolon and tab outside
// quotes on the first line.
func detectDelimiter(content []byte) rune {
	first := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		first = content[:i]
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, c := range string(first) {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case !inQuotes && (c == ',' || c == ';' || c == '\t'):
			counts[c]++
		}
	}

	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
