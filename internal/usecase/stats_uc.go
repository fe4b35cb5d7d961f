package usecase

import (
	"context"

	"telegram-link-gateway/internal/domain/ports/repository"
	"telegram-link-gateway/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StoreUsage is the diagnostic shown by /stats. FreeBytes is measured against the configured quota.
type StoreUsage struct {
	Identities int
	UsedBytes  int64
	FreeBytes  int64
	QuotaBytes int64
}

type StatsUseCase interface {
	Usage(ctx context.Context) (*StoreUsage, error)
}

type statsUC struct {
	identities repository.IdentityRepository
	quotaBytes int64
	log        *zerolog.Logger
}

func NewStatsUseCase(identities repository.IdentityRepository, quotaBytes int64, logger *zerolog.Logger) *statsUC {
	return &statsUC{identities: identities, quotaBytes: quotaBytes, log: logger}
}

func (s *statsUC) Usage(ctx context.Context) (*StoreUsage, error) {
	defer logging.TraceDuration(s.log, "StatsUC.Usage")()

	n, err := s.identities.Count(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.identities.Stats(ctx)
	if err != nil {
		return nil, err
	}
	free := s.quotaBytes - st.UsedBytes
	if free < 0 {
		free = 0
	}
	return &StoreUsage{Identities: n, UsedBytes: st.UsedBytes, FreeBytes: free, QuotaBytes: s.quotaBytes}, nil
}
