package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/model"
	"github.com/Veraticus/spice-sorter/internal/service"
)

const transactionColumns = `
	id, date, time, merchant, canonical_merchant, payee, counterparty, description,
	amount, channel, mcc, country_prefix, payment_method, status,
	category, category_source, category_confidence, category_fingerprint, matched_rule_id,
	created_at`

// ListTransactions returns every stored transaction, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listTransactionsTx(ctx, s.db)
}

func (s *SQLiteStorage) listTransactionsTx(ctx context.Context, q queryable) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY date DESC, time DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", wrapDBError(err))
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}

	return transactions, rows.Err()
}

// GetTransaction retrieves a single transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionTx(ctx context.Context, q queryable, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// TransactionExists reports whether a transaction with id is stored.
func (s *SQLiteStorage) TransactionExists(ctx context.Context, id string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return s.transactionExistsTx(ctx, s.db, id)
}

func (s *SQLiteStorage) transactionExistsTx(ctx context.Context, q queryable, id string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %w", wrapDBError(err))
	}
	return exists, nil
}

// InsertTransaction stores a new transaction. The category is coerced first.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.insertTransactionTx(ctx, s.db, s, txn)
}

func (s *SQLiteStorage) insertTransactionTx(ctx context.Context, q queryable, reg service.CategoryRegistry, txn *model.Transaction) error {
	category, err := service.CoerceCategory(ctx, reg, txn.Category)
	if err != nil {
		return err
	}
	txn.Category = category
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	_, err = q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.DateString(), txn.Time, txn.Merchant, txn.CanonicalMerchant,
		txn.Payee, txn.Counterparty, txn.Description,
		txn.Amount.String(), txn.Channel, txn.MCC, txn.CountryPrefix, txn.PaymentMethod, txn.Status,
		txn.Category, string(txn.Classification.Source), txn.Classification.Confidence,
		txn.Classification.Fingerprint, txn.Classification.MatchedRuleID,
		txn.CreatedAt,
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("transaction %s: %w", txn.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert transaction: %w", wrapDBError(err))
	}
	return nil
}

// UpdateTransaction overwrites the stored row with the same id. The category is coerced first.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.updateTransactionTx(ctx, s.db, s, txn)
}

func (s *SQLiteStorage) updateTransactionTx(ctx context.Context, q queryable, reg service.CategoryRegistry, txn *model.Transaction) error {
	category, err := service.CoerceCategory(ctx, reg, txn.Category)
	if err != nil {
		return err
	}
	txn.Category = category

	result, err := q.ExecContext(ctx, `
		UPDATE transactions SET
			date = ?, time = ?, merchant = ?, canonical_merchant = ?, payee = ?,
			counterparty = ?, description = ?, amount = ?, channel = ?, mcc = ?,
			country_prefix = ?, payment_method = ?, status = ?, category = ?,
			category_source = ?, category_confidence = ?, category_fingerprint = ?,
			matched_rule_id = ?
		WHERE id = ?`,
		txn.DateString(), txn.Time, txn.Merchant, txn.CanonicalMerchant, txn.Payee,
		txn.Counterparty, txn.Description, txn.Amount.String(), txn.Channel, txn.MCC,
		txn.CountryPrefix, txn.PaymentMethod, txn.Status, txn.Category,
		string(txn.Classification.Source), txn.Classification.Confidence, txn.Classification.Fingerprint,
		txn.Classification.MatchedRuleID,
		txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", wrapDBError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", txn.ID, common.ErrNotFound)
	}
	return nil
}

// DeleteTransaction removes one transaction and reports whether it existed.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return s.deleteTransactionTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteTransactionTx(ctx context.Context, q queryable, id string) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete transaction: %w", wrapDBError(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteAllTransactions removes every transaction and returns how many were deleted.
// Overrides and custom categories are kept.
func (s *SQLiteStorage) DeleteAllTransactions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.deleteAllTransactionsTx(ctx, s.db)
}

func (s *SQLiteStorage) deleteAllTransactionsTx(ctx context.Context, q queryable) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", wrapDBError(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn       model.Transaction
		date      string
		amount    string
		source    string
		createdAt sql.NullTime
	)

	err := row.Scan(
		&txn.ID, &date, &txn.Time, &txn.Merchant, &txn.CanonicalMerchant,
		&txn.Payee, &txn.Counterparty, &txn.Description,
		&amount, &txn.Channel, &txn.MCC, &txn.CountryPrefix, &txn.PaymentMethod, &txn.Status,
		&txn.Category, &source, &txn.Classification.Confidence,
		&txn.Classification.Fingerprint, &txn.Classification.MatchedRuleID,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", wrapDBError(err))
	}

	txn.Date, err = time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s has date %q", common.ErrDatabaseCorrupted, txn.ID, date)
	}
	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s has amount %q", common.ErrDatabaseCorrupted, txn.ID, amount)
	}
	txn.Classification.Source = model.Source(source)
	if createdAt.Valid {
		txn.CreatedAt = createdAt.Time
	}

	return &txn, nil
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
