package importer

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-sorter/internal/model"
)

// Defaults applied to rows that lack a value.
const (
	UnknownMerchant      = "Unknown"
	DefaultPaymentMethod = "CSV Import"
	DefaultStatus        = "completed"
)

// Header aliases, matched case-insensitively after whitespace collapsing. The
// first non-empty column in each list wins.
var (
	dateHeaders     = []string{"date", "booking date", "transaction date", "datum", "valuta", "data", "data operazione"}
	timeHeaders     = []string{"time", "ora"}
	merchantHeaders = []string{"partner", "merchant", "payee", "counterparty", "description", "reference", "partner name", "descrizione"}
	payeeHeaders    = []string{"payee"}
	counterHeaders  = []string{"counterparty", "partner name"}
	descHeaders     = []string{"description", "reference", "payment reference"}
	amountHeaders   = []string{"amount", "amount (eur)", "amount (usd)", "betrag", "transaction amount", "importo"}
	typeHeaders     = []string{"type", "transaction type", "art"}
	methodHeaders   = []string{"payment method", "account", "payment_method"}
	categoryHeaders = []string{"category"}
	mccHeaders      = []string{"mcc", "merchant category code"}
	ibanHeaders     = []string{"iban", "account number", "counterparty iban"}
)

var recurringPattern = regexp.MustCompile(`(?i)recurring|subscription|abbuchung|dauerauftrag`)

// record is one statement row keyed by normalized header.
type record map[string]string

func normHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimPrefix(h, "\ufeff")), " "))
}

func newRecord(headers, values []string) record {
	r := make(record, len(headers))
	for i, h := range headers {
		key := normHeader(h)
		if key == "" {
			continue
		}
		v := ""
		if i < len(values) {
			v = strings.TrimSpace(values[i])
		}
		if _, exists := r[key]; !exists || r[key] == "" {
			r[key] = v
		}
	}
	return r
}

func (r record) get(names ...string) string {
	for _, n := range names {
		if v := r[normHeader(n)]; v != "" {
			return v
		}
	}
	return ""
}

func (r record) empty() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// toTransaction maps a generic statement row. Unparseable values degrade:
// merchant "Unknown", date today, amount zero.
func (r record) toTransaction(today time.Time) model.Transaction {
	date, ok := parseDate(r.get(dateHeaders...))
	if !ok {
		date = today
	}

	merchant := r.get(merchantHeaders...)
	if merchant == "" {
		merchant = UnknownMerchant
	}

	channel := model.ChannelOneTime
	if recurringPattern.MatchString(r.get(typeHeaders...)) {
		channel = model.ChannelRecurring
	}

	method := r.get(methodHeaders...)
	if method == "" {
		method = DefaultPaymentMethod
	}

	txn := model.Transaction{
		Date:          date,
		Time:          PadTime(r.get(timeHeaders...)),
		Amount:        parseAmount(r.get(amountHeaders...)),
		Merchant:      merchant,
		Channel:       channel,
		PaymentMethod: method,
		Status:        DefaultStatus,
		Category:      r.get(categoryHeaders...),
		MCC:           r.get(mccHeaders...),
		CountryPrefix: countryPrefix(r.get(ibanHeaders...)),
	}
	if p := r.get(payeeHeaders...); p != merchant {
		txn.Payee = p
	}
	if c := r.get(counterHeaders...); c != merchant {
		txn.Counterparty = c
	}
	if d := r.get(descHeaders...); d != merchant {
		txn.Description = d
	}
	txn.ID = StableID(txn.DateString(), txn.Time, txn.Amount, txn.Merchant)
	return txn
}

var (
	isoDatePattern    = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
	dottedDatePattern = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})[./](\d{2}|\d{4})$`)
)

// Layouts tried after the ISO and day-first forms, including the ones
// spreadsheet cells are rendered with.
var fallbackDateLayouts = []string{
	time.RFC3339,
	"01-02-06",
	"1/2/06 15:04",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseDate accepts ISO dates, day-first dd/mm/yy(yy) or dd.mm.yy(yy), and a
// few common renderings. The result is a UTC calendar date.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		t, err := time.Parse(model.DateLayout, m[1])
		return t, err == nil
	}

	if m := dottedDatePattern.FindStringSubmatch(s); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		t, err := time.Parse("2006-1-2", year+"-"+m[2]+"-"+m[1])
		return t, err == nil
	}

	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseAmount reads a signed decimal written with either a dot or a comma as
// the decimal separator. Unparseable input yields zero.
func parseAmount(s string) decimal.Decimal {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\u00a0', '€', '$', '£':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma > lastDot:
		// 1.234,56 or -250,00
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0:
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var ibanPrefixPattern = regexp.MustCompile(`^[A-Z]{2}\d{2}`)

func countryPrefix(iban string) string {
	iban = strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if !ibanPrefixPattern.MatchString(iban) {
		return ""
	}
	return iban[:2]
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
