// Package model defines the core domain models used throughout the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date layout used for storage and import.
const DateLayout = "2006-01-02"

// Channel values seen on imported and manually entered transactions.
const (
	ChannelOneTime   = "one-time"
	ChannelRecurring = "recurring"
	ChannelCash      = "cash"
	ChannelTransfer  = "transfer"
)

// Transaction represents a single financial transaction from any source.
type Transaction struct {
	Date      time.Time
	CreatedAt time.Time
	Amount    decimal.Decimal // Signed; negative is an expense
	ID        string
	Merchant  string // Raw merchant or statement description

	// Optional merchant candidates, consulted in order after CanonicalMerchant and Merchant
	CanonicalMerchant string
	Payee             string
	Counterparty      string
	Description       string

	Time          string // HH:MM:SS when the source provides it
	Channel       string // e.g. recurring, cash, transfer
	MCC           string // Merchant category code
	CountryPrefix string // Counterparty IBAN country prefix
	PaymentMethod string
	Status        string

	Category       string
	Classification Classification
}

// MerchantCandidate returns the first non-empty merchant-like field.
func (t *Transaction) MerchantCandidate() string {
	for _, s := range []string{t.CanonicalMerchant, t.Merchant, t.Payee, t.Counterparty, t.Description} {
		if s != "" {
			return s
		}
	}
	return ""
}

// DateString formats the transaction date as YYYY-MM-DD.
func (t *Transaction) DateString() string {
	if t.Date.IsZero() {
		return ""
	}
	return t.Date.Format(DateLayout)
}

// IsIncome reports whether the amount is strictly positive.
func (t *Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

// TransactionPatch describes a partial update. Nil fields are left untouched.
type TransactionPatch struct {
	Date          *time.Time
	Amount        *decimal.Decimal
	Merchant      *string
	Time          *string
	Channel       *string
	MCC           *string
	CountryPrefix *string
	PaymentMethod *string
	Status        *string
	Category      *string
}

// Apply copies the non-nil fields of the patch onto txn.
func (p TransactionPatch) Apply(txn *Transaction) {
	if p.Date != nil {
		txn.Date = *p.Date
	}
	if p.Amount != nil {
		txn.Amount = *p.Amount
	}
	if p.Merchant != nil {
		txn.Merchant = *p.Merchant
	}
	if p.Time != nil {
		txn.Time = *p.Time
	}
	if p.Channel != nil {
		txn.Channel = *p.Channel
	}
	if p.MCC != nil {
		txn.MCC = *p.MCC
	}
	if p.CountryPrefix != nil {
		txn.CountryPrefix = *p.CountryPrefix
	}
	if p.PaymentMethod != nil {
		txn.PaymentMethod = *p.PaymentMethod
	}
	if p.Status != nil {
		txn.Status = *p.Status
	}
	if p.Category != nil {
		txn.Category = *p.Category
	}
}

// ChangesSignature reports whether the patch touches a field that participates in the fingerprint.
func (p TransactionPatch) ChangesSignature() bool {
	return p.Merchant != nil || p.Channel != nil || p.MCC != nil || p.CountryPrefix != nil
}
