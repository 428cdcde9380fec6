// Package reclassify re-runs the classifier over stored transactions in two
// steps: a read-only dry run that reports proposed changes, and an apply step
// that writes a caller-selected subset of them through the manual edit path.
package reclassify

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/ledger"
	"github.com/Veraticus/spice-sorter/internal/model"
)

// Checkpointer snapshots the database before a bulk write.
type Checkpointer interface {
	AutoCheckpoint(ctx context.Context, operation string) error
}

// ProgressFunc is called after each selected transaction is processed.
type ProgressFunc func(done, total int)

// Service runs dry runs and applies over a ledger.
type Service struct {
	ledger       *ledger.Service
	checkpointer Checkpointer
	progress     ProgressFunc
	retry        common.RetryOptions
	workers      int
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers bounds the number of concurrent classifications in a dry run.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithCheckpointer enables a snapshot before every apply.
func WithCheckpointer(c Checkpointer) Option {
	return func(s *Service) {
		s.checkpointer = c
	}
}

// WithProgress registers a callback for apply progress.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Service) {
		s.progress = fn
	}
}

// WithRetryOptions sets the retry policy for busy-database errors during apply.
func WithRetryOptions(opts common.RetryOptions) Option {
	return func(s *Service) {
		s.retry = opts
	}
}

// New creates a reclassification service.
func New(l *ledger.Service, opts ...Option) *Service {
	s := &Service{
		ledger:  l,
		workers: runtime.NumCPU(),
		retry:   common.DefaultRetryOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DryRun classifies every stored transaction, ignoring stored categories, and
// returns those whose suggestion differs from the current category. Results
// are ordered by date descending, then id. Nothing is written.
func (s *Service) DryRun(ctx context.Context) ([]model.Change, error) {
	txns, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	classifier := s.ledger.Classifier()
	results := make([]*model.Change, len(txns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range txns {
		i := i
		g.Go(func() error {
			txn := &txns[i]
			result, err := classifier.Classify(gctx, txn)
			if err != nil {
				return fmt.Errorf("classify %s: %w", txn.ID, err)
			}
			if result.Category == txn.Category {
				return nil
			}
			results[i] = &model.Change{
				TransactionID:     txn.ID,
				Merchant:          txn.Merchant,
				Date:              txn.Date,
				CurrentCategory:   txn.Category,
				SuggestedCategory: result.Category,
				Source:            result.Source,
				MatchedRuleID:     result.MatchedRuleID,
				Confidence:        result.Confidence,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	changes := make([]model.Change, 0, len(results))
	for _, c := range results {
		if c != nil {
			changes = append(changes, *c)
		}
	}
	SortChanges(changes)

	slog.Info("Reclassification dry run complete",
		"transactions", len(txns),
		"changes", len(changes))
	return changes, nil
}

// Apply works out the suggestion for every selected id before writing
// anything, then persists exactly those suggestions through the manual edit
// path. Duplicate ids are applied once. A failure on one id is recorded and
// processing continues; the returned error is only set when the run could
// not start.
func (s *Service) Apply(ctx context.Context, ids []string) (*model.ApplyReport, error) {
	report := &model.ApplyReport{}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return report, nil
	}

	changes := make([]model.Change, 0, len(ids))
	for _, id := range ids {
		change, err := s.suggest(ctx, id)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, model.ApplyFailure{TransactionID: id, Err: err})
		case change == nil:
			report.Unchanged = append(report.Unchanged, id)
		default:
			changes = append(changes, *change)
		}
	}

	return s.write(ctx, changes, report, len(ids))
}

// ApplyChanges persists reviewed changes as they are. A row whose stored
// category is no longer the change's current category is reported as a
// failure wrapping common.ErrConflict and left untouched.
func (s *Service) ApplyChanges(ctx context.Context, changes []model.Change) (*model.ApplyReport, error) {
	seen := make(map[string]struct{}, len(changes))
	unique := make([]model.Change, 0, len(changes))
	for _, c := range changes {
		if _, dup := seen[c.TransactionID]; dup {
			continue
		}
		seen[c.TransactionID] = struct{}{}
		unique = append(unique, c)
	}
	return s.write(ctx, unique, &model.ApplyReport{}, len(unique))
}

func (s *Service) write(ctx context.Context, changes []model.Change, report *model.ApplyReport, total int) (*model.ApplyReport, error) {
	if len(changes) > 0 && s.checkpointer != nil {
		if err := s.checkpointer.AutoCheckpoint(ctx, "reclassify"); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint: %w", err)
		}
	}

	done := total - len(changes)
	if done > 0 && s.progress != nil {
		s.progress(done, total)
	}

	for _, change := range changes {
		id := change.TransactionID
		changed, err := s.applyOne(ctx, change)
		switch {
		case err != nil:
			common.LogWarn(ctx, "Failed to reclassify transaction", common.Fields{
				"transaction_id": id,
				"error":          err,
			})
			report.Failed = append(report.Failed, model.ApplyFailure{TransactionID: id, Err: err})
		case changed:
			report.Applied = append(report.Applied, id)
		default:
			report.Unchanged = append(report.Unchanged, id)
		}

		done++
		if s.progress != nil {
			s.progress(done, total)
		}
	}

	slog.Info("Reclassification apply complete",
		"applied", len(report.Applied),
		"unchanged", len(report.Unchanged),
		"failed", len(report.Failed))
	return report, nil
}

// suggest returns the change for id, or nil when the classifier agrees with
// the stored category.
func (s *Service) suggest(ctx context.Context, id string) (*model.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := s.ledger.Classifier().Classify(ctx, txn)
	if err != nil {
		return nil, err
	}
	if result.Category == txn.Category {
		return nil, nil
	}
	return &model.Change{
		TransactionID:     txn.ID,
		Merchant:          txn.Merchant,
		Date:              txn.Date,
		CurrentCategory:   txn.Category,
		SuggestedCategory: result.Category,
		Source:            result.Source,
		MatchedRuleID:     result.MatchedRuleID,
		Confidence:        result.Confidence,
	}, nil
}

func (s *Service) applyOne(ctx context.Context, change model.Change) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var changed bool
	err := common.WithRetry(ctx, func() error {
		var err error
		_, changed, err = s.ledger.ReplaceCategory(ctx, change.TransactionID, change.CurrentCategory, change.SuggestedCategory)
		return err
	}, s.retry)
	return changed, err
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

// SortChanges orders changes by date descending, then id ascending.
func SortChanges(changes []model.Change) {
	sort.Slice(changes, func(i, j int) bool {
		if !changes[i].Date.Equal(changes[j].Date) {
			return changes[i].Date.After(changes[j].Date)
		}
		return changes[i].TransactionID < changes[j].TransactionID
	})
}

// IDs returns the transaction ids of changes in order.
func IDs(changes []model.Change) []string {
	ids := make([]string, len(changes))
	for i, c := range changes {
		ids[i] = c.TransactionID
	}
	return ids
}
