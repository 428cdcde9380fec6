// Package classification holds the ordered rule table used to categorize transactions.
package classification

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Veraticus/spice-sorter/internal/model"
)

// Input is what a rule predicate sees for one transaction.
type Input struct {
	Txn        *model.Transaction
	Normalized string   // Normalized merchant candidate
	Tokens     []string // Tokens of the normalized candidate
}

// Predicate decides whether a rule applies. Predicates must be pure.
type Predicate func(in Input) bool

// Rule maps a predicate to a category with a static confidence.
type Rule struct {
	Match      Predicate
	ID         string
	Category   model.Category
	Confidence float64
}

// Match is the outcome of evaluating the table against one transaction.
type Match struct {
	RuleID     string
	Category   model.Category
	Confidence float64
}

// Table is an immutable, ordered rule list. The first matching rule wins.
type Table struct {
	rules []Rule
}

// NewTable validates and wraps rules. Order is preserved.
func NewTable(rules []Rule) (*Table, error) {
	seen := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule at index %d has no id", i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.Match == nil {
			return nil, fmt.Errorf("rule %q has no predicate", r.ID)
		}
		if r.Confidence <= 0 || r.Confidence >= 1 {
			return nil, fmt.Errorf("rule %q confidence %.2f must be in (0, 1)", r.ID, r.Confidence)
		}
	}

	out := make([]Rule, len(rules))
	copy(out, rules)
	return &Table{rules: out}, nil
}

// MustNewTable is like NewTable but panics on an invalid table.
func MustNewTable(rules []Rule) *Table {
	t, err := NewTable(rules)
	if err != nil {
		panic(err)
	}
	return t
}

// Evaluate returns the first matching rule, or false when none applies.
func (t *Table) Evaluate(in Input) (Match, bool) {
	for _, r := range t.rules {
		if safeMatch(r, in) {
			return Match{
				RuleID:     r.ID,
				Category:   r.Category,
				Confidence: r.Confidence,
			}, true
		}
	}
	return Match{}, false
}

// Rules returns a copy of the table in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// safeMatch evaluates one predicate; a panicking predicate counts as no match.
func safeMatch(r Rule, in Input) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Debug("rule predicate panicked", "rule", r.ID, "panic", rec)
			matched = false
		}
	}()
	return r.Match(in)
}

// matchNormalized builds a predicate testing the normalized merchant candidate.
func matchNormalized(pattern string) Predicate {
	re := regexp.MustCompile(pattern)
	return func(in Input) bool {
		return re.MatchString(in.Normalized)
	}
}

// matchMCC builds a predicate testing the trimmed merchant category code.
func matchMCC(pattern string) Predicate {
	re := regexp.MustCompile(pattern)
	return func(in Input) bool {
		return in.Txn != nil && re.MatchString(trimmed(in.Txn.MCC))
	}
}
