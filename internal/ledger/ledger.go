// Package ledger is the transaction API used by the CLI, the HTTP server and
// the reclassifier. Every write goes through the classifier exactly once, and
// manual category edits feed the override memory inside the same database
// transaction as the row update.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/engine"
	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/service"
)

// Defaults for manually entered transactions.
const (
	DefaultStatus = "completed"
	idPrefix      = "tx-"
)

// Service manages stored transactions.
type Service struct {
	store      service.Storage
	classifier *engine.Classifier
	now        func() time.Time
}

// New creates a ledger over store. The classifier must read overrides from the same store.
func New(store service.Storage, classifier *engine.Classifier) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		now:        time.Now,
	}
}

// Classifier returns the classifier used on write.
func (s *Service) Classifier() *engine.Classifier {
	return s.classifier
}

// List returns every transaction, newest first.
func (s *Service) List(ctx context.Context) ([]model.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

// Get returns one transaction or common.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*model.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Exists reports whether a transaction with id is stored.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.store.TransactionExists(ctx, id)
}

// Create fills defaults, classifies and stores a new transaction. An explicit
// valid category on txn is kept with source IMPORT.
func (s *Service) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if txn == nil {
		return nil, fmt.Errorf("%w: nil transaction", common.ErrInvalidTransaction)
	}

	created := *txn
	if strings.TrimSpace(created.ID) == "" {
		created.ID = idPrefix + uuid.NewString()
	}
	if created.Date.IsZero() {
		now := s.now().UTC()
		created.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if created.Channel == "" {
		created.Channel = model.ChannelOneTime
	}
	if created.Status == "" {
		created.Status = DefaultStatus
	}

	if _, err := s.classifier.Apply(ctx, &created); err != nil {
		return nil, fmt.Errorf("failed to classify transaction: %w", err)
	}
	if err := s.store.InsertTransaction(ctx, &created); err != nil {
		return nil, err
	}

	common.LogDebug(ctx, "Created transaction", common.Fields{
		"id":       created.ID,
		"category": created.Category,
		"source":   created.Classification.Source,
	})
	return &created, nil
}

// Update applies patch to the stored transaction. It returns nil without an
// error when id is unknown. A category in the patch that differs from the
// stored one is treated as a manual edit and recorded in the override memory.
func (s *Service) Update(ctx context.Context, id string, patch model.TransactionPatch) (*model.Transaction, error) {
	var updated *model.Transaction
	err := s.withTx(ctx, func(tx service.Transaction, classifier *engine.Classifier) error {
		current, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}

		category := patch.Category
		patch.Category = nil
		patch.Apply(current)

		if patch.ChangesSignature() {
			current.Classification.Fingerprint = classifier.Normalizer().Fingerprint(current)
		}

		if category != nil {
			chosen, err := classifier.Coerce(ctx, *category)
			if err != nil {
				return err
			}
			if chosen != current.Category {
				if err := classifier.RecordUserCategory(ctx, current, chosen); err != nil {
					return err
				}
			}
		}

		if err := tx.UpdateTransaction(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetCategory is the manual edit path: it coerces category, records it under
// the transaction's fingerprint and stem, and persists the row atomically.
// It returns common.ErrNotFound when id is unknown.
func (s *Service) SetCategory(ctx context.Context, id, category string) (*model.Transaction, error) {
	updated, _, err := s.setCategory(ctx, id, category, nil)
	return updated, err
}

// ReplaceCategory is SetCategory guarded by the category the caller last saw.
// It reports false without writing when the row already holds category, and
// returns common.ErrConflict when the stored category is neither from nor category.
func (s *Service) ReplaceCategory(ctx context.Context, id, from, category string) (*model.Transaction, bool, error) {
	return s.setCategory(ctx, id, category, &from)
}

func (s *Service) setCategory(ctx context.Context, id, category string, from *string) (*model.Transaction, bool, error) {
	var (
		updated *model.Transaction
		changed bool
	)
	err := s.withTx(ctx, func(tx service.Transaction, classifier *engine.Classifier) error {
		current, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if from != nil {
			if current.Category == category {
				updated = current
				return nil
			}
			if current.Category != *from {
				return fmt.Errorf("transaction %s is %s, expected %s: %w", id, current.Category, *from, common.ErrConflict)
			}
		}
		if err := classifier.RecordUserCategory(ctx, current, category); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, current); err != nil {
			return err
		}
		updated = current
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		common.LogDebug(ctx, "Recorded manual category", common.Fields{
			"id":          updated.ID,
			"category":    updated.Category,
			"fingerprint": updated.Classification.Fingerprint,
		})
	}
	return updated, changed, nil
}

// Delete removes one transaction and reports whether it existed. Override
// entries learned from it are kept.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.store.DeleteTransaction(ctx, id)
}

// DeleteAll removes every transaction and returns how many were deleted.
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	return s.store.DeleteAllTransactions(ctx)
}

func (s *Service) withTx(ctx context.Context, fn func(service.Transaction, *engine.Classifier) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx, s.classifier.Bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
