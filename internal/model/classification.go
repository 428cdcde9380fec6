package model

// Source indicates how a transaction's category was decided.
type Source string

// Classification source constants.
const (
	SourceOverride Source = "OVERRIDE"
	SourceRule     Source = "RULE"
	SourceFallback Source = "FALLBACK"
	SourceImport   Source = "IMPORT"
)

// Fixed confidences for sources that do not carry a rule score.
const (
	OverrideConfidence = 1.0
	FallbackConfidence = 0.2
	ImportConfidence   = 0.9
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceOverride, SourceRule, SourceFallback, SourceImport:
		return true
	}
	return false
}

// Classification is the metadata attached to a classified transaction.
type Classification struct {
	Source        Source
	Fingerprint   string
	MatchedRuleID string
	Confidence    float64
}

// ClassificationResult is the classifier's answer for one transaction.
type ClassificationResult struct {
	Category       string
	Source         Source
	Fingerprint    string
	MatchedRuleID  string
	Stem           string // Set when the stem override produced the category
	MatchedSignals []string
	Confidence     float64
}

// Metadata returns the subset of the result persisted on a transaction.
func (r ClassificationResult) Metadata() Classification {
	return Classification{
		Source:        r.Source,
		Confidence:    r.Confidence,
		Fingerprint:   r.Fingerprint,
		MatchedRuleID: r.MatchedRuleID,
	}
}
