package merchant

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spice-sorter/internal/model"
)

func TestFingerprint_Stability(t *testing.T) {
	base := model.Transaction{
		ID:       "a",
		Merchant: "Netflix.com",
		Amount:   decimal.RequireFromString("-12.99"),
		Date:     time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Channel:  model.ChannelRecurring,
	}
	fp := Fingerprint(&base)
	assert.Len(t, fp, 64)

	t.Run("ignores amount date and id", func(t *testing.T) {
		other := base
		other.ID = "b"
		other.Amount = decimal.RequireFromString("-15.99")
		other.Date = base.Date.AddDate(0, 1, 0)
		assert.Equal(t, fp, Fingerprint(&other))
	})

	t.Run("same normalized merchant", func(t *testing.T) {
		other := base
		other.Merchant = "NETFLIX 866-579"
		assert.Equal(t, fp, Fingerprint(&other))
	})

	t.Run("secondary signals participate", func(t *testing.T) {
		for _, mutate := range []func(*model.Transaction){
			func(tx *model.Transaction) { tx.Channel = model.ChannelOneTime },
			func(tx *model.Transaction) { tx.MCC = "4899" },
			func(tx *model.Transaction) { tx.CountryPrefix = "IE" },
			func(tx *model.Transaction) { tx.Merchant = "Spotify" },
		} {
			other := base
			mutate(&other)
			assert.NotEqual(t, fp, Fingerprint(&other))
		}
	})

	t.Run("canonical merchant wins over raw", func(t *testing.T) {
		other := base
		other.Merchant = "SEPA DD 12345"
		other.CanonicalMerchant = "Netflix"
		assert.Equal(t, fp, Fingerprint(&other))
	})

	t.Run("trims secondary signals", func(t *testing.T) {
		a, b := base, base
		a.MCC = "5411"
		b.MCC = " 5411 "
		assert.Equal(t, Fingerprint(&a), Fingerprint(&b))
	})
}

func TestMerchantCandidateOrder(t *testing.T) {
	txn := model.Transaction{Payee: "Payee", Counterparty: "Counter", Description: "Desc"}
	assert.Equal(t, "Payee", txn.MerchantCandidate())
	txn.Payee = ""
	assert.Equal(t, "Counter", txn.MerchantCandidate())
	txn.Counterparty = ""
	assert.Equal(t, "Desc", txn.MerchantCandidate())
	txn.Merchant = "Raw"
	assert.Equal(t, "Raw", txn.MerchantCandidate())
}
