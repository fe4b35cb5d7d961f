package repository

import (
	"context"

	"telegram-link-gateway/internal/domain/model"
)

// -----------------------------
// Identities
// -----------------------------

// StoreStats are read-only storage diagnostics.
type StoreStats struct {
	UsedBytes int64
}

// IdentityRepository is the Identity Store. Upsert-by-key is atomic and is the only
// concurrency primitive; callers never lock.
type IdentityRepository interface {
	// FindOne returns domain.ErrNotFound when the key is unknown.
	FindOne(ctx context.Context, id int64) (*model.Identity, error)
	// Upsert creates the identity with defaults if missing, then applies the patch.
	Upsert(ctx context.Context, id int64, patch model.IdentityPatch) error
	Count(ctx context.Context) (int, error)
	// ListPage returns identities ordered by id.
	ListPage(ctx context.Context, skip, limit int) ([]*model.Identity, error)
	Stats(ctx context.Context) (StoreStats, error)
}
