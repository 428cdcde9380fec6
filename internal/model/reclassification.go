package model

import "time"

// Change is one proposed category change produced by a reclassification dry run.
type Change struct {
	Date              time.Time
	TransactionID     string
	Merchant          string
	CurrentCategory   string
	SuggestedCategory string
	Source            Source
	MatchedRuleID     string
	Confidence        float64
}

// ApplyFailure records why one selected transaction could not be updated.
type ApplyFailure struct {
	Err           error
	TransactionID string
}

// ApplyReport summarizes a reclassification apply run.
type ApplyReport struct {
	Applied   []string
	Unchanged []string
	Failed    []ApplyFailure
}

// HasFailures reports whether any selected transaction failed.
func (r *ApplyReport) HasFailures() bool {
	return len(r.Failed) > 0
}

// ImportRow is one parsed statement row, before classification.
type ImportRow struct {
	Transaction Transaction
	Line        int  // 1-based source row for diagnostics
	Duplicate   bool // Set by preview when the stable id is already stored
}

// ImportReport summarizes an import commit.
type ImportReport struct {
	Inserted   []Transaction
	Duplicates []string
	Failed     []ApplyFailure
	Total      int
}
