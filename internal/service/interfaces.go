// Package service defines the collaborator contracts shared by the classifier,
// the storage layer and the outer surfaces.
package service

import (
	"context"

	"github.com/Veraticus/spice-sorter/internal/model"
)

// TransactionStore persists transactions. Implementations coerce categories
// before writing; callers never see an invalid category read back.
type TransactionStore interface {
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	// GetTransaction returns common.ErrNotFound when id is unknown.
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	TransactionExists(ctx context.Context, id string) (bool, error)
	InsertTransaction(ctx context.Context, txn *model.Transaction) error
	// UpdateTransaction writes txn over the stored row with the same id.
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) (bool, error)
	DeleteAllTransactions(ctx context.Context) (int, error)
}

// OverrideStore is the classifier's memory of user corrections.
type OverrideStore interface {
	GetOverrideByFingerprint(ctx context.Context, fingerprint string) (string, bool, error)
	GetOverrideByStem(ctx context.Context, stem string) (string, bool, error)
	UpsertOverrideByFingerprint(ctx context.Context, fingerprint, category, exampleMerchant string) error
	// UpsertOverrideByStem ignores stems shorter than model.MinStemLength.
	UpsertOverrideByStem(ctx context.Context, stem, category, exampleMerchant string) error
	// ListOverrides returns fingerprint-keyed entries, most recently updated first.
	ListOverrides(ctx context.Context) ([]model.OverrideEntry, error)
}

// CategoryRegistry stores user-created category names.
type CategoryRegistry interface {
	ListCustomCategories(ctx context.Context) ([]string, error)
	// AddCustomCategory is idempotent and returns the stored name.
	AddCustomCategory(ctx context.Context, name string) (string, error)
	RemoveCustomCategory(ctx context.Context, name string) (bool, error)
	IsCustomCategory(ctx context.Context, name string) (bool, error)
}

// Store is the set of collaborators available both on the database and inside a transaction.
type Store interface {
	TransactionStore
	OverrideStore
	CategoryRegistry
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Store

	// BackfillStemOverrides derives a stem entry for every fingerprint entry lacking one.
	BackfillStemOverrides(ctx context.Context) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction. Override cache entries
// written inside it become visible to other readers only after Commit.
type Transaction interface {
	Store
	Commit() error
	Rollback() error
}
