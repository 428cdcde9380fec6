package engine

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Veraticus/spice-sorter/internal/model"
)

// mockOverrideStore is a testify mock of service.OverrideStore.
type mockOverrideStore struct {
	mock.Mock
}

func (m *mockOverrideStore) GetOverrideByFingerprint(ctx context.Context, fingerprint string) (string, bool, error) {
	args := m.Called(ctx, fingerprint)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockOverrideStore) GetOverrideByStem(ctx context.Context, stem string) (string, bool, error) {
	args := m.Called(ctx, stem)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockOverrideStore) UpsertOverrideByFingerprint(ctx context.Context, fingerprint, category, example string) error {
	return m.Called(ctx, fingerprint, category, example).Error(0)
}

func (m *mockOverrideStore) UpsertOverrideByStem(ctx context.Context, stem, category, example string) error {
	return m.Called(ctx, stem, category, example).Error(0)
}

func (m *mockOverrideStore) ListOverrides(ctx context.Context) ([]model.OverrideEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]model.OverrideEntry)
	return entries, args.Error(1)
}
