package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-sorter/internal/model"
)

// CoerceCategory maps name onto a storable category: a built-in, a registered
// custom category, or the fallback. Registry failures are returned, never coerced.
func CoerceCategory(ctx context.Context, registry CategoryRegistry, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return string(model.FallbackCategory), nil
	}
	if model.IsBuiltin(name) {
		return name, nil
	}
	if registry == nil {
		return string(model.FallbackCategory), nil
	}

	ok, err := registry.IsCustomCategory(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to look up custom category %q: %w", name, err)
	}
	if ok {
		return name, nil
	}
	return string(model.FallbackCategory), nil
}
