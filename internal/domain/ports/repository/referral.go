package repository

import (
	"context"

	"telegram-link-gateway/internal/domain/model"
)

// -----------------------------
// Referrals
// -----------------------------

type ReferralRepository interface {
	// Create inserts a new record; codes are unique.
	Create(ctx context.Context, rec *model.ReferralRecord) error
	// FindByCode returns domain.ErrCodeNotFound when the code is unknown.
	FindByCode(ctx context.Context, code string) (*model.ReferralRecord, error)
	ExistsForReferrer(ctx context.Context, referrerID int64) (bool, error)
	// AppendReferral pushes identityID onto the code's referred list.
	// Returns domain.ErrCodeNotFound when the code is unknown.
	AppendReferral(ctx context.Context, code string, identityID int64) error
	ListByReferrer(ctx context.Context, referrerID int64) ([]*model.ReferralRecord, error)
}
