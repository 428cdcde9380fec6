// Package engine implements the classification pipeline: override memory first,
// then the rule table, then the fallback category.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-sorter/internal/classification"
	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/merchant"
	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/service"
)

// Signals reported for override hits.
const (
	SignalFingerprintOverride = "merchant_override"
	SignalStemOverride        = "merchant_stem_override"
)

// Classifier assigns categories to transactions. It holds no mutable state of
// its own; the override store is the only thing that changes between calls.
type Classifier struct {
	overrides  service.OverrideStore
	registry   service.CategoryRegistry
	rules      *classification.Table
	normalizer *merchant.Normalizer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRules replaces the default rule table.
func WithRules(table *classification.Table) Option {
	return func(c *Classifier) {
		if table != nil {
			c.rules = table
		}
	}
}

// WithNormalizer replaces the default merchant normalizer.
func WithNormalizer(n *merchant.Normalizer) Option {
	return func(c *Classifier) {
		if n != nil {
			c.normalizer = n
		}
	}
}

// New creates a classifier backed by the given override store and category registry.
func New(overrides service.OverrideStore, registry service.CategoryRegistry, opts ...Option) *Classifier {
	c := &Classifier{
		overrides:  overrides,
		registry:   registry,
		rules:      classification.Default(),
		normalizer: merchant.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind returns a classifier sharing this one's rules and normalizer but reading
// and writing through store, typically an open database transaction.
func (c *Classifier) Bind(store service.Store) *Classifier {
	bound := *c
	bound.overrides = store
	bound.registry = store
	return &bound
}

// Normalizer returns the normalizer in use.
func (c *Classifier) Normalizer() *merchant.Normalizer {
	return c.normalizer
}

// Classify runs override lookup, rule evaluation and fallback. It ignores any
// category already on txn and never writes.
func (c *Classifier) Classify(ctx context.Context, txn *model.Transaction) (model.ClassificationResult, error) {
	if txn == nil {
		return model.ClassificationResult{}, fmt.Errorf("%w: nil transaction", common.ErrInvalidTransaction)
	}
	if c.overrides == nil {
		return model.ClassificationResult{}, fmt.Errorf("%w: no override store", common.ErrStoreUnavailable)
	}

	candidate := txn.MerchantCandidate()
	normalized := c.normalizer.Normalize(candidate)
	fingerprint := c.normalizer.Fingerprint(txn)

	category, found, err := c.overrides.GetOverrideByFingerprint(ctx, fingerprint)
	if err != nil {
		return model.ClassificationResult{}, fmt.Errorf("fingerprint override lookup: %w", err)
	}
	if found {
		return c.overrideResult(ctx, category, fingerprint, "", SignalFingerprintOverride)
	}

	if stem := c.normalizer.Stem(candidate); len([]rune(stem)) >= model.MinStemLength {
		category, found, err = c.overrides.GetOverrideByStem(ctx, stem)
		if err != nil {
			return model.ClassificationResult{}, fmt.Errorf("stem override lookup: %w", err)
		}
		if found {
			return c.overrideResult(ctx, category, fingerprint, stem, SignalStemOverride)
		}
	}

	match, ok := c.rules.Evaluate(classification.Input{
		Txn:        txn,
		Normalized: normalized,
		Tokens:     strings.Fields(normalized),
	})
	if ok {
		return model.ClassificationResult{
			Category:       string(match.Category),
			Confidence:     match.Confidence,
			Source:         model.SourceRule,
			Fingerprint:    fingerprint,
			MatchedRuleID:  match.RuleID,
			MatchedSignals: []string{match.RuleID},
		}, nil
	}

	return model.ClassificationResult{
		Category:       string(model.FallbackCategory),
		Confidence:     model.FallbackConfidence,
		Source:         model.SourceFallback,
		Fingerprint:    fingerprint,
		MatchedSignals: []string{},
	}, nil
}

func (c *Classifier) overrideResult(ctx context.Context, category, fingerprint, stem, signal string) (model.ClassificationResult, error) {
	coerced, err := c.Coerce(ctx, category)
	if err != nil {
		return model.ClassificationResult{}, err
	}
	return model.ClassificationResult{
		Category:       coerced,
		Confidence:     model.OverrideConfidence,
		Source:         model.SourceOverride,
		Fingerprint:    fingerprint,
		Stem:           stem,
		MatchedSignals: []string{signal},
	}, nil
}

// Apply classifies txn and writes the result onto it. A caller-supplied
// category that coerces to something other than the fallback is kept as-is
// with source IMPORT.
func (c *Classifier) Apply(ctx context.Context, txn *model.Transaction) (model.ClassificationResult, error) {
	if txn == nil {
		return model.ClassificationResult{}, fmt.Errorf("%w: nil transaction", common.ErrInvalidTransaction)
	}

	if explicit := strings.TrimSpace(txn.Category); explicit != "" && explicit != string(model.FallbackCategory) {
		coerced, err := c.Coerce(ctx, explicit)
		if err != nil {
			return model.ClassificationResult{}, err
		}
		if coerced != string(model.FallbackCategory) {
			result := model.ClassificationResult{
				Category:       coerced,
				Confidence:     model.ImportConfidence,
				Source:         model.SourceImport,
				Fingerprint:    c.normalizer.Fingerprint(txn),
				MatchedSignals: []string{},
			}
			annotate(txn, result)
			return result, nil
		}
		slog.Debug("Explicit category is not valid, classifying instead",
			"transaction_id", txn.ID,
			"category", explicit)
	}

	result, err := c.Classify(ctx, txn)
	if err != nil {
		return model.ClassificationResult{}, err
	}
	annotate(txn, result)
	return result, nil
}

// RecordUserCategory remembers a manual category choice under both the
// fingerprint and the stem of txn, then marks txn as an override. It must be
// called once per user-initiated change; the classifier never calls it itself.
func (c *Classifier) RecordUserCategory(ctx context.Context, txn *model.Transaction, chosen string) error {
	if txn == nil {
		return fmt.Errorf("%w: nil transaction", common.ErrInvalidTransaction)
	}
	if c.overrides == nil {
		return fmt.Errorf("%w: no override store", common.ErrStoreUnavailable)
	}

	category, err := c.Coerce(ctx, chosen)
	if err != nil {
		return err
	}

	fingerprint := txn.Classification.Fingerprint
	if fingerprint == "" {
		fingerprint = c.normalizer.Fingerprint(txn)
	}

	example := txn.Merchant
	if strings.TrimSpace(example) == "" {
		example = txn.MerchantCandidate()
	}

	if err := c.overrides.UpsertOverrideByFingerprint(ctx, fingerprint, category, example); err != nil {
		return fmt.Errorf("failed to record fingerprint override: %w", err)
	}
	if stem := c.normalizer.Stem(txn.MerchantCandidate()); stem != "" {
		if err := c.overrides.UpsertOverrideByStem(ctx, stem, category, example); err != nil {
			return fmt.Errorf("failed to record stem override: %w", err)
		}
	}

	txn.Category = category
	txn.Classification = model.Classification{
		Source:      model.SourceOverride,
		Confidence:  model.OverrideConfidence,
		Fingerprint: fingerprint,
	}
	return nil
}

// Coerce maps category onto a built-in, a registered custom category, or the fallback.
func (c *Classifier) Coerce(ctx context.Context, category string) (string, error) {
	return service.CoerceCategory(ctx, c.registry, category)
}

func annotate(txn *model.Transaction, result model.ClassificationResult) {
	txn.Category = result.Category
	txn.Classification = result.Metadata()
}
