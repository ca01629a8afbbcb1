package site

import (
	"context"
	"errors"
	"fmt"

	"github.com/zdub15/agent-website-generator/internal/profile"
)

const defaultSlug = "agent"

// maxSlugAttempts bounds the suffix search.
const maxSlugAttempts = 1000

// UniqueSlug derives a slug from name and appends -1, -2, ... until the
// store has no site using it.
func UniqueSlug(ctx context.Context, store Store, name string) (string, error) {
	base := profile.Slugify(name)
	if base == "" {
		base = defaultSlug
	}
	candidate := base
	for i := 1; i <= maxSlugAttempts; i++ {
		_, err := store.GetBySlug(ctx, candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("%w: no free slug for %q", ErrSlugTaken, base)
}
