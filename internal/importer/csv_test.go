package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/model"
)

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func parseCSV(t *testing.T, text string) []model.ImportRow {
	t.Helper()
	rows, err := NewCSVParser().Parse(context.Background(), strings.NewReader(text))
	require.NoError(t, err)
	return rows
}

func TestCSVParser_Basic(t *testing.T) {
	rows := parseCSV(t, "Date,Partner,Amount\n2024-01-15,Netflix,-14.99\n2024-01-16,Amazon,-32.50\n")
	require.Len(t, rows, 2)

	first := rows[0].Transaction
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "Netflix", first.Merchant)
	assert.Equal(t, "2024-01-15", first.DateString())
	assert.True(t, decimal.RequireFromString("-14.99").Equal(first.Amount))
	assert.Equal(t, model.ChannelOneTime, first.Channel)
	assert.Equal(t, DefaultPaymentMethod, first.PaymentMethod)
	assert.Equal(t, DefaultStatus, first.Status)
	assert.Equal(t, StableID("2024-01-15", "", first.Amount, "Netflix"), first.ID)
	assert.Empty(t, first.Category)
}

func TestCSVParser_N26Columns(t *testing.T) {
	rows := parseCSV(t, "Booking Date,Partner Name,Amount (EUR),Transaction type,Payment reference\n"+
		"15.01.2024,EASY PARK,\"-5,00\",Direct Debit recurring,Parking Jan\n")
	require.Len(t, rows, 1)

	txn := rows[0].Transaction
	assert.Equal(t, "EASY PARK", txn.Merchant)
	assert.Equal(t, "2024-01-15", txn.DateString())
	assert.True(t, decimal.RequireFromString("-5").Equal(txn.Amount))
	assert.Equal(t, model.ChannelRecurring, txn.Channel)
	assert.Equal(t, "Parking Jan", txn.Description)
}

func TestCSVParser_Delimiters(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "semicolon", text: "Datum;Betrag;Payee\n03/02/24;-1.234,56;Miete GmbH\n"},
		{name: "tab", text: "Datum\tBetrag\tPayee\n03.02.2024\t-1234.56\tMiete GmbH\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := parseCSV(t, tt.text)
			require.Len(t, rows, 1)
			txn := rows[0].Transaction
			assert.Equal(t, "Miete GmbH", txn.Merchant)
			assert.Equal(t, "2024-02-03", txn.DateString())
			assert.True(t, decimal.RequireFromString("-1234.56").Equal(txn.Amount), txn.Amount.String())
		})
	}
}

func TestCSVParser_Degrades(t *testing.T) {
	fixClock(t, time.Date(2024, 5, 6, 22, 10, 0, 0, time.UTC))

	rows := parseCSV(t, "Date,Partner,Amount,Note\nsometime,,abc,x\n,,,\n")
	require.Len(t, rows, 1, "blank rows are skipped")

	txn := rows[0].Transaction
	assert.Equal(t, UnknownMerchant, txn.Merchant)
	assert.Equal(t, "2024-05-06", txn.DateString())
	assert.True(t, txn.Amount.IsZero())
}

func TestCSVParser_Secondary(t *testing.T) {
	rows := parseCSV(t, "date,time,merchant,amount,mcc,iban,category\n2024-01-15,9:05,Bar Roma,-3.20,5812,IT60 X054 2811,DINING\n")
	require.Len(t, rows, 1)

	txn := rows[0].Transaction
	assert.Equal(t, "09:05:00", txn.Time)
	assert.Equal(t, "5812", txn.MCC)
	assert.Equal(t, "IT", txn.CountryPrefix)
	assert.Equal(t, "DINING", txn.Category)
}

func TestCSVParser_EmptyAndHeaderOnly(t *testing.T) {
	_, err := NewCSVParser().Parse(context.Background(), strings.NewReader("  \n"))
	require.ErrorIs(t, err, common.ErrEmptyStatement)

	assert.Empty(t, parseCSV(t, "Only Header\n"))
}

func TestCSVParser_ReimportIsStable(t *testing.T) {
	text := "Date,Partner,Amount\n2024-01-15,Netflix,-14.99\n"
	first := parseCSV(t, text)
	second := parseCSV(t, "Partner,Amount,Date\nNetflix,-14.990,15/01/2024\n")
	assert.Equal(t, first[0].Transaction.ID, second[0].Transaction.ID)
}

func TestParseAmount(t *testing.T) {
	tests := map[string]string{
		"-14.99":   "-14.99",
		"-250,00":  "-250",
		"1.234,56": "1234.56",
		"1,234.56": "1234.56",
		"$ 12":     "12",
		"- 5":      "-5",
		"":         "0",
		"n/a":      "0",
	}
	for in, want := range tests {
		assert.True(t, decimal.RequireFromString(want).Equal(parseAmount(in)), "%q -> %s", in, parseAmount(in))
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "2024-01-15", want: "2024-01-15", ok: true},
		{in: "2024-01-15T10:00:00Z", want: "2024-01-15", ok: true},
		{in: "15/01/2024", want: "2024-01-15", ok: true},
		{in: "5.1.24", want: "2024-01-05", ok: true},
		{in: "01-15-24", want: "2024-01-15", ok: true},
		{in: "Jan 15, 2024", want: "2024-01-15", ok: true},
		{in: "yesterday", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format(model.DateLayout))
			}
		})
	}
}
