package web

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type mockStatsUC struct {
	UsageFunc func(ctx context.Context) (*usecase.StoreUsage, error)
}

func (m *mockStatsUC) Usage(ctx context.Context) (*usecase.StoreUsage, error) {
	if m.UsageFunc != nil {
		return m.UsageFunc(ctx)
	}
	return &usecase.StoreUsage{Identities: 2, UsedBytes: 100, FreeBytes: 900, QuotaBytes: 1000}, nil
}

type mockUserUC struct {
	identities []*model.Identity
}

func (m *mockUserUC) RegisterOrFetch(ctx context.Context, tgID int64, displayName, handle string) (*model.Identity, bool, error) {
	return nil, false, domain.ErrInvalidArgument
}

func (m *mockUserUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.Identity, error) {
	for _, i := range m.identities {
		if i.ID == tgID {
			return i, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserUC) Count(ctx context.Context) (int, error) { return len(m.identities), nil }

func (m *mockUserUC) ListPage(ctx context.Context, page int) ([]*model.Identity, error) {
	start := page * usecase.ListPageSize
	if start >= len(m.identities) {
		return nil, nil
	}
	end := start + usecase.ListPageSize
	if end > len(m.identities) {
		end = len(m.identities)
	}
	return m.identities[start:end], nil
}
