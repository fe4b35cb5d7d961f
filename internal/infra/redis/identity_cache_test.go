//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/repository"
)

var nopLog = zerolog.Nop()

type countingRepo struct {
	identities map[int64]*model.Identity
	finds      int
	// afterRead runs once the row has been copied, before FindOne returns.
	afterRead func()
}

func (r *countingRepo) FindOne(ctx context.Context, id int64) (*model.Identity, error) {
	r.finds++
	i, ok := r.identities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *i
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return &cp, nil
}

func (r *countingRepo) Upsert(ctx context.Context, id int64, p model.IdentityPatch) error {
	i, ok := r.identities[id]
	if !ok {
		i, _ = model.NewIdentity(id, "", "")
		r.identities[id] = i
	}
	p.Apply(i)
	return nil
}

func (r *countingRepo) Count(ctx context.Context) (int, error) { return len(r.identities), nil }
func (r *countingRepo) ListPage(ctx context.Context, skip, limit int) ([]*model.Identity, error) {
	return nil, nil
}
func (r *countingRepo) Stats(ctx context.Context) (repository.StoreStats, error) {
	return repository.StoreStats{}, nil
}

func TestIdentityCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{identities: map[int64]*model.Identity{}}
	cache := NewIdentityCacheDecorator(inner, newMemClient(), 0, &nopLog)

	name := "Ada"
	if err := cache.Upsert(ctx, 1, model.IdentityPatch{DisplayName: &name}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := cache.FindOne(ctx, 1)
		if err != nil || got.DisplayName != "Ada" {
			t.Fatalf("FindOne: %+v, %v", got, err)
		}
	}
	if inner.finds != 1 {
		t.Errorf("expected one store read, got %d", inner.finds)
	}

	renamed := "Grace"
	_ = cache.Upsert(ctx, 1, model.IdentityPatch{DisplayName: &renamed})
	got, _ := cache.FindOne(ctx, 1)
	if got.DisplayName != "Grace" {
		t.Errorf("expected eviction after write, got %q", got.DisplayName)
	}

	if _, err := cache.FindOne(ctx, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound passthrough, got %v", err)
	}
}

func TestIdentityCache_ReadRacingWrite(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{identities: map[int64]*model.Identity{}}
	cache := NewIdentityCacheDecorator(inner, newMemClient(), 0, &nopLog)

	first, second := "TOKENONE", "TOKENTWO"
	if err := cache.Upsert(ctx, 7, model.IdentityPatch{ActiveToken: &first}); err != nil {
		t.Fatal(err)
	}
	// the store read sees TOKENONE, then a new token is issued before the read is cached
	inner.afterRead = func() {
		if err := cache.Upsert(ctx, 7, model.IdentityPatch{ActiveToken: &second}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := cache.FindOne(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveToken != first {
		t.Fatalf("racing read should return its own snapshot, got %q", got.ActiveToken)
	}

	for i := 0; i < 2; i++ {
		got, err = cache.FindOne(ctx, 7)
		if err != nil {
			t.Fatal(err)
		}
		if got.ActiveToken != second {
			t.Fatalf("read %d: replaced token served from cache: %q", i, got.ActiveToken)
		}
	}
	if !got.TokenMatches(second) || got.TokenMatches(first) {
		t.Error("only the latest token may match")
	}
}

func TestIdentityCache_InvalidationFailures(t *testing.T) {
	ctx := context.Background()
	name, renamed := "Ada", "Grace"

	t.Run("stale entry is ignored when eviction fails", func(t *testing.T) {
		inner := &countingRepo{identities: map[int64]*model.Identity{}}
		mem := newMemClient()
		cache := NewIdentityCacheDecorator(inner, mem, 0, &nopLog)
		_ = cache.Upsert(ctx, 1, model.IdentityPatch{DisplayName: &name})
		if _, err := cache.FindOne(ctx, 1); err != nil {
			t.Fatal(err)
		}

		mem.delErr = errors.New("timeout")
		if err := cache.Upsert(ctx, 1, model.IdentityPatch{DisplayName: &renamed}); err != nil {
			t.Fatalf("a bumped generation is enough, got %v", err)
		}
		got, err := cache.FindOne(ctx, 1)
		if err != nil || got.DisplayName != renamed {
			t.Fatalf("expected fresh row, got %+v, %v", got, err)
		}
	})

	t.Run("reports when nothing could be invalidated", func(t *testing.T) {
		inner := &countingRepo{identities: map[int64]*model.Identity{}}
		mem := newMemClient()
		cache := NewIdentityCacheDecorator(inner, mem, 0, &nopLog)
		mem.incrErr = errors.New("down")
		mem.delErr = errors.New("down")
		if err := cache.Upsert(ctx, 1, model.IdentityPatch{DisplayName: &name}); err == nil {
			t.Fatal("expected invalidation error")
		}
		if inner.identities[1] == nil || inner.identities[1].DisplayName != name {
			t.Error("the store write must still land")
		}
	})
}
