//go:build !integration

package usecase_test

import (
	"context"
	"testing"

	"telegram-link-gateway/internal/domain/ports/repository"
	"telegram-link-gateway/internal/usecase"
)

func TestStatsUseCase_Usage(t *testing.T) {
	ctx := context.Background()
	repo := NewMockIdentityRepo()
	seedIdentities(repo, 3)
	repo.StatsFunc = func(ctx context.Context) (repository.StoreStats, error) {
		return repository.StoreStats{UsedBytes: 300}, nil
	}

	u, err := usecase.NewStatsUseCase(repo, 1000, newTestLogger()).Usage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.Identities != 3 || u.UsedBytes != 300 || u.FreeBytes != 700 {
		t.Errorf("unexpected usage %+v", u)
	}

	over, err := usecase.NewStatsUseCase(repo, 100, newTestLogger()).Usage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if over.FreeBytes != 0 {
		t.Errorf("free bytes must not go negative, got %d", over.FreeBytes)
	}
}
