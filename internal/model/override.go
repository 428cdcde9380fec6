package model

import "time"

// OverrideKind identifies which key an override entry is stored under.
type OverrideKind string

const (
	// OverrideByFingerprint keys an override on the exact transaction fingerprint.
	OverrideByFingerprint OverrideKind = "fingerprint"
	// OverrideByStem keys an override on the first normalized merchant token.
	OverrideByStem OverrideKind = "stem"
)

// MinStemLength is the shortest stem accepted as an override key.
const MinStemLength = 2

// OverrideEntry is a stored user correction.
type OverrideEntry struct {
	UpdatedAt       time.Time
	Kind            OverrideKind
	Key             string
	Category        string
	ExampleMerchant string
}
