package usecase

import (
	"context"
	"errors"
	"fmt"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/repository"
	"telegram-link-gateway/internal/infra/logging"
	"telegram-link-gateway/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// ListPageSize is the number of identities shown per /list page.
const ListPageSize = 100

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes identity operations used by bot/admin flows.
type UserUseCase interface {
	// RegisterOrFetch upserts the identity on contact and reports whether it was new.
	RegisterOrFetch(ctx context.Context, tgID int64, displayName, handle string) (*model.Identity, bool, error)
	GetByTelegramID(ctx context.Context, tgID int64) (*model.Identity, error)
	Count(ctx context.Context) (int, error)
	// ListPage returns one zero-based page of ListPageSize identities.
	ListPage(ctx context.Context, page int) ([]*model.Identity, error)
}

type userUC struct {
	identities repository.IdentityRepository
	admins     map[int64]struct{}
	log        *zerolog.Logger
}

func NewUserUseCase(identities repository.IdentityRepository, adminIDs []int64, logger *zerolog.Logger) *userUC {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &userUC{identities: identities, admins: admins, log: logger}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, tgID int64, displayName, handle string) (*model.Identity, bool, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	if tgID == 0 {
		return nil, false, domain.ErrInvalidArgument
	}
	_, err := u.identities.FindOne(ctx, tgID)
	isNew := errors.Is(err, domain.ErrNotFound)
	if err != nil && !isNew {
		return nil, false, err
	}

	role := model.RoleStandard
	if _, ok := u.admins[tgID]; ok {
		role = model.RoleAdmin
	}
	patch := model.IdentityPatch{DisplayName: &displayName, Handle: &handle, Role: &role}
	if err := u.identities.Upsert(ctx, tgID, patch); err != nil {
		u.log.Error().Err(err).Int64("tg_id", tgID).Msg("failed to upsert identity")
		return nil, false, err
	}

	identity, err := u.identities.FindOne(ctx, tgID)
	if err != nil {
		return nil, false, fmt.Errorf("reload identity: %w", err)
	}
	if isNew {
		metrics.IncIdentitiesRegistered()
		u.log.Info().Int64("tg_id", tgID).Msg("new identity registered")
	}
	return identity, isNew, nil
}

func (u *userUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.Identity, error) {
	defer logging.TraceDuration(u.log, "UserUC.GetByTelegramID")()
	return u.identities.FindOne(ctx, tgID)
}

func (u *userUC) Count(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "UserUC.Count")()
	return u.identities.Count(ctx)
}

func (u *userUC) ListPage(ctx context.Context, page int) ([]*model.Identity, error) {
	defer logging.TraceDuration(u.log, "UserUC.ListPage")()
	if page < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return u.identities.ListPage(ctx, page*ListPageSize, ListPageSize)
}
