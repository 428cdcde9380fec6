package merchant

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Veraticus/spice-sorter/internal/model"
)

// fingerprintDelimiter separates the fingerprint components before hashing.
const fingerprintDelimiter = "|"

// Fingerprint hashes the normalized merchant candidate with the transaction's
// secondary signals. Amount, date and id never participate.
func (n *Normalizer) Fingerprint(txn *model.Transaction) string {
	parts := []string{
		n.Normalize(txn.MerchantCandidate()),
		strings.TrimSpace(txn.MCC),
		strings.TrimSpace(txn.CountryPrefix),
		strings.TrimSpace(txn.Channel),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, fingerprintDelimiter)))
	return hex.EncodeToString(sum[:])
}

// Fingerprint applies the default normalizer.
func Fingerprint(txn *model.Transaction) string {
	return defaultNormalizer.Fingerprint(txn)
}
