//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
)

func TestReferralRepo_Integration(t *testing.T) {
	repo := NewPostgresReferralRepo(testPool)
	ctx := context.Background()

	t.Run("should create, append and list", func(t *testing.T) {
		cleanup(t)

		rec := &model.ReferralRecord{Code: "ABCD2345", ReferrerID: 10, CreatedAt: time.Now()}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := repo.Create(ctx, rec); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected duplicate code to fail, got %v", err)
		}
		for _, id := range []int64{20, 20, 30} {
			if err := repo.AppendReferral(ctx, "ABCD2345", id); err != nil {
				t.Fatalf("AppendReferral: %v", err)
			}
		}
		got, err := repo.FindByCode(ctx, "ABCD2345")
		if err != nil {
			t.Fatalf("FindByCode: %v", err)
		}
		if len(got.Referred) != 3 || got.Referred[0] != 20 || got.Referred[2] != 30 {
			t.Errorf("unexpected referred list %v", got.Referred)
		}

		ok, err := repo.ExistsForReferrer(ctx, 10)
		if err != nil || !ok {
			t.Errorf("expected referrer to exist: %v %v", ok, err)
		}
		list, err := repo.ListByReferrer(ctx, 10)
		if err != nil || len(list) != 1 {
			t.Errorf("unexpected list %v, %v", list, err)
		}
	})

	t.Run("should report unknown codes", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByCode(ctx, "NOPE"); !errors.Is(err, domain.ErrCodeNotFound) {
			t.Errorf("expected ErrCodeNotFound, got %v", err)
		}
		if err := repo.AppendReferral(ctx, "NOPE", 1); !errors.Is(err, domain.ErrCodeNotFound) {
			t.Errorf("expected ErrCodeNotFound on append, got %v", err)
		}
		if ok, _ := repo.ExistsForReferrer(ctx, 77); ok {
			t.Error("expected no record for 77")
		}
	})
}
