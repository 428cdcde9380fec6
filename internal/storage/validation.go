// Package storage provides the SQLite persistence layer for transactions,
// merchant overrides and custom categories.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/model"
)

// maxCategoryNameLength bounds custom category names.
const maxCategoryNameLength = 64

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidOverride  = errors.New("invalid override")
	ErrInvalidCategory  = errors.New("invalid category name")
	ErrInvalidTimestamp = errors.New("invalid time of day")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if strings.TrimSpace(txn.ID) == "" {
		return fmt.Errorf("%w: missing ID", common.ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", common.ErrInvalidTransaction)
	}
	if txn.Time != "" && !validTimeOfDay(txn.Time) {
		return fmt.Errorf("%w: %w %q", common.ErrInvalidTransaction, ErrInvalidTimestamp, txn.Time)
	}
	if txn.Classification.Source != "" && !txn.Classification.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", common.ErrInvalidTransaction, txn.Classification.Source)
	}
	return nil
}

// validateCategoryName validates a custom category name.
func validateCategoryName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCategory)
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidCategory, maxCategoryNameLength)
	}
	return nil
}

// validTimeOfDay accepts HH:MM:SS.
func validTimeOfDay(s string) bool {
	if len(s) != 8 || s[2] != ':' || s[5] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4, 6, 7} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s[0:2] <= "23" && s[3:5] <= "59" && s[6:8] <= "59"
}
