package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_CustomCategories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	name, err := store.AddCustomCategory(ctx, "  Pets ")
	require.NoError(t, err)
	assert.Equal(t, "Pets", name)

	name, err = store.AddCustomCategory(ctx, "Pets")
	require.NoError(t, err, "adding an existing name is a no-op success")
	assert.Equal(t, "Pets", name)

	_, err = store.AddCustomCategory(ctx, "Hobbies")
	require.NoError(t, err)

	name, err = store.AddCustomCategory(ctx, "DINING")
	require.NoError(t, err)
	assert.Equal(t, "DINING", name)

	names, err := store.ListCustomCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hobbies", "Pets"}, names)

	ok, err := store.IsCustomCategory(ctx, "Pets")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := store.RemoveCustomCategory(ctx, "Pets")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.RemoveCustomCategory(ctx, "Pets")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSQLiteStorage_CustomCategoryValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.AddCustomCategory(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = store.AddCustomCategory(ctx, strings.Repeat("x", maxCategoryNameLength+1))
	assert.ErrorIs(t, err, ErrInvalidCategory)
}
