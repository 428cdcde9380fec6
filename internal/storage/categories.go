package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-sorter/internal/model"
)

// ListCustomCategories returns user-created category names in alphabetical order.
func (s *SQLiteStorage) ListCustomCategories(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listCustomCategoriesTx(ctx, s.db)
}

func (s *SQLiteStorage) listCustomCategoriesTx(ctx context.Context, q queryable) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM custom_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom categories: %w", wrapDBError(err))
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved custom categories", "count", len(names))
	return names, nil
}

// AddCustomCategory registers name. Adding an existing or built-in name is a no-op.
func (s *SQLiteStorage) AddCustomCategory(ctx context.Context, name string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	return s.addCustomCategoryTx(ctx, s.db, name)
}

func (s *SQLiteStorage) addCustomCategoryTx(ctx context.Context, q queryable, name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := validateCategoryName(name); err != nil {
		return "", err
	}
	if model.IsBuiltin(name) {
		return name, nil
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO custom_categories (name) VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`, name)
	if err != nil {
		return "", fmt.Errorf("failed to add custom category: %w", wrapDBError(err))
	}
	return name, nil
}

// RemoveCustomCategory unregisters name and reports whether it existed.
// Transactions already carrying the category keep it.
func (s *SQLiteStorage) RemoveCustomCategory(ctx context.Context, name string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return s.removeCustomCategoryTx(ctx, s.db, name)
}

func (s *SQLiteStorage) removeCustomCategoryTx(ctx context.Context, q queryable, name string) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM custom_categories WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return false, fmt.Errorf("failed to remove custom category: %w", wrapDBError(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// IsCustomCategory reports whether name is registered.
func (s *SQLiteStorage) IsCustomCategory(ctx context.Context, name string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return s.isCustomCategoryTx(ctx, s.db, name)
}

func (s *SQLiteStorage) isCustomCategoryTx(ctx context.Context, q queryable, name string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM custom_categories WHERE name = ?)`, strings.TrimSpace(name)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check custom category: %w", wrapDBError(err))
	}
	return exists, nil
}
