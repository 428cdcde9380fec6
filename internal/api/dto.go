package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/model"
)

type classificationJSON struct {
	Source        model.Source `json:"source"`
	Fingerprint   string       `json:"fingerprint,omitempty"`
	MatchedRuleID string       `json:"matchedRuleId,omitempty"`
	Confidence    float64      `json:"confidence"`
}

type transactionJSON struct {
	Classification classificationJSON `json:"classification"`
	ID             string             `json:"id"`
	Date           string             `json:"date"`
	Time           string             `json:"time,omitempty"`
	Merchant       string             `json:"merchant"`
	Payee          string             `json:"payee,omitempty"`
	Counterparty   string             `json:"counterparty,omitempty"`
	Description    string             `json:"description,omitempty"`
	Category       string             `json:"category"`
	Channel        string             `json:"channel"`
	MCC            string             `json:"mcc,omitempty"`
	CountryPrefix  string             `json:"countryPrefix,omitempty"`
	PaymentMethod  string             `json:"paymentMethod,omitempty"`
	Status         string             `json:"status,omitempty"`
	Amount         float64            `json:"amount"`
}

func toJSON(txn *model.Transaction) transactionJSON {
	return transactionJSON{
		ID:            txn.ID,
		Date:          txn.DateString(),
		Time:          txn.Time,
		Merchant:      txn.Merchant,
		Payee:         txn.Payee,
		Counterparty:  txn.Counterparty,
		Description:   txn.Description,
		Amount:        txn.Amount.InexactFloat64(),
		Category:      txn.Category,
		Channel:       txn.Channel,
		MCC:           txn.MCC,
		CountryPrefix: txn.CountryPrefix,
		PaymentMethod: txn.PaymentMethod,
		Status:        txn.Status,
		Classification: classificationJSON{
			Source:        txn.Classification.Source,
			Fingerprint:   txn.Classification.Fingerprint,
			MatchedRuleID: txn.Classification.MatchedRuleID,
			Confidence:    txn.Classification.Confidence,
		},
	}
}

func toJSONList(txns []model.Transaction) []transactionJSON {
	out := make([]transactionJSON, len(txns))
	for i := range txns {
		out[i] = toJSON(&txns[i])
	}
	return out
}

type createRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	ID            string          `json:"id"`
	Merchant      string          `json:"merchant" binding:"required"`
	Date          string          `json:"date"`
	Time          string          `json:"time"`
	Category      string          `json:"category"`
	Channel       string          `json:"channel"`
	MCC           string          `json:"mcc"`
	CountryPrefix string          `json:"countryPrefix"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        string          `json:"status"`
}

func (r *createRequest) transaction() (*model.Transaction, error) {
	txn := &model.Transaction{
		ID:            strings.TrimSpace(r.ID),
		Merchant:      r.Merchant,
		Time:          r.Time,
		Amount:        r.Amount,
		Category:      r.Category,
		Channel:       r.Channel,
		MCC:           r.MCC,
		CountryPrefix: r.CountryPrefix,
		PaymentMethod: r.PaymentMethod,
		Status:        r.Status,
	}
	if r.Date != "" {
		date, err := parseDate(r.Date)
		if err != nil {
			return nil, err
		}
		txn.Date = date
	}
	return txn, nil
}

type updateRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	Date          *string          `json:"date"`
	Time          *string          `json:"time"`
	Merchant      *string          `json:"merchant"`
	Category      *string          `json:"category"`
	Channel       *string          `json:"channel"`
	MCC           *string          `json:"mcc"`
	CountryPrefix *string          `json:"countryPrefix"`
	PaymentMethod *string          `json:"paymentMethod"`
	Status        *string          `json:"status"`
}

func (r *updateRequest) patch() (model.TransactionPatch, error) {
	p := model.TransactionPatch{
		Amount:        r.Amount,
		Time:          r.Time,
		Merchant:      r.Merchant,
		Category:      r.Category,
		Channel:       r.Channel,
		MCC:           r.MCC,
		CountryPrefix: r.CountryPrefix,
		PaymentMethod: r.PaymentMethod,
		Status:        r.Status,
	}
	if r.Date != nil {
		date, err := parseDate(*r.Date)
		if err != nil {
			return p, err
		}
		p.Date = &date
	}
	return p, nil
}

func parseDate(s string) (time.Time, error) {
	date, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", common.ErrInvalidTransaction, s)
	}
	return date, nil
}

type overrideJSON struct {
	UpdatedAt       time.Time `json:"updated_at"`
	Fingerprint     string    `json:"fingerprint"`
	Category        string    `json:"category"`
	ExampleMerchant *string   `json:"example_merchant"`
}

func toOverrideJSON(entries []model.OverrideEntry) []overrideJSON {
	out := make([]overrideJSON, len(entries))
	for i, e := range entries {
		out[i] = overrideJSON{
			Fingerprint: e.Key,
			Category:    e.Category,
			UpdatedAt:   e.UpdatedAt,
		}
		if e.ExampleMerchant != "" {
			example := e.ExampleMerchant
			out[i].ExampleMerchant = &example
		}
	}
	return out
}

type changeJSON struct {
	TransactionID     string       `json:"id"`
	Date              string       `json:"date"`
	Merchant          string       `json:"merchant"`
	CurrentCategory   string       `json:"currentCategory"`
	SuggestedCategory string       `json:"suggestedCategory"`
	Source            model.Source `json:"source"`
	MatchedRuleID     string       `json:"matchedRuleId,omitempty"`
	Confidence        float64      `json:"confidence"`
}

func toChangeJSON(changes []model.Change) []changeJSON {
	out := make([]changeJSON, len(changes))
	for i, c := range changes {
		out[i] = changeJSON{
			TransactionID:     c.TransactionID,
			Date:              c.Date.Format(model.DateLayout),
			Merchant:          c.Merchant,
			CurrentCategory:   c.CurrentCategory,
			SuggestedCategory: c.SuggestedCategory,
			Source:            c.Source,
			MatchedRuleID:     c.MatchedRuleID,
			Confidence:        c.Confidence,
		}
	}
	return out
}

type failureJSON struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func toFailureJSON(failed []model.ApplyFailure) []failureJSON {
	out := make([]failureJSON, len(failed))
	for i, f := range failed {
		out[i] = failureJSON{ID: f.TransactionID, Error: f.Err.Error()}
	}
	return out
}

type applyRequest struct {
	IDs []string `json:"ids"`
}

type applyResponse struct {
	Applied   []string      `json:"applied"`
	Unchanged []string      `json:"unchanged"`
	Failed    []failureJSON `json:"failed"`
}

type previewRowJSON struct {
	Transaction transactionJSON `json:"transaction"`
	Line        int             `json:"line"`
	Duplicate   bool            `json:"duplicate"`
}

type importResponse struct {
	Inserted   []transactionJSON `json:"inserted"`
	Duplicates []string          `json:"duplicates"`
	Failed     []failureJSON     `json:"failed"`
	Total      int               `json:"total"`
}

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
