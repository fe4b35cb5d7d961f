//go:build !integration

package application_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/adapter"
	"telegram-link-gateway/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

type memIdentityRepo struct {
	mu   sync.Mutex
	data map[int64]*model.Identity
}

var _ repository.IdentityRepository = (*memIdentityRepo)(nil)

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{data: map[int64]*model.Identity{}}
}

func (r *memIdentityRepo) FindOne(ctx context.Context, id int64) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (r *memIdentityRepo) Upsert(ctx context.Context, id int64, patch model.IdentityPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.data[id]
	if !ok {
		i = &model.Identity{ID: id, VerifiedUntil: model.EpochMin, Role: model.RoleStandard, CreatedAt: time.Now()}
		r.data[id] = i
	}
	patch.Apply(i)
	return nil
}

func (r *memIdentityRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data), nil
}

func (r *memIdentityRepo) ListPage(ctx context.Context, skip, limit int) ([]*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.data))
	for id := range r.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	out := []*model.Identity{}
	for i := skip; i < len(ids) && len(out) < limit; i++ {
		cp := *r.data[ids[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memIdentityRepo) Stats(ctx context.Context) (repository.StoreStats, error) {
	return repository.StoreStats{UsedBytes: 2048}, nil
}

type memReferralRepo struct {
	mu   sync.Mutex
	recs []*model.ReferralRecord
}

var _ repository.ReferralRepository = (*memReferralRepo)(nil)

func (r *memReferralRepo) Create(ctx context.Context, rec *model.ReferralRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.recs = append(r.recs, &cp)
	return nil
}

func (r *memReferralRepo) FindByCode(ctx context.Context, code string) (*model.ReferralRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.Code == code {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrCodeNotFound
}

func (r *memReferralRepo) ExistsForReferrer(ctx context.Context, referrerID int64) (bool, error) {
	recs, _ := r.ListByReferrer(ctx, referrerID)
	return len(recs) > 0, nil
}

func (r *memReferralRepo) AppendReferral(ctx context.Context, code string, identityID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.Code == code {
			rec.Referred = append(rec.Referred, identityID)
			return nil
		}
	}
	return domain.ErrCodeNotFound
}

func (r *memReferralRepo) ListByReferrer(ctx context.Context, referrerID int64) ([]*model.ReferralRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ReferralRecord
	for _, rec := range r.recs {
		if rec.ReferrerID == referrerID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

type outbound struct {
	ChatID int64
	Text   string
	Rows   [][]adapter.InlineButton
}

type mockMessenger struct {
	mu   sync.Mutex
	sent []outbound
}

func (m *mockMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	return m.SendButtons(ctx, chatID, text, nil)
}

func (m *mockMessenger) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, outbound{ChatID: chatID, Text: text, Rows: rows})
	return nil
}

func (m *mockMessenger) Deliver(ctx context.Context, chatID int64, msg model.BroadcastMessage) error {
	return nil
}

func (m *mockMessenger) to(chatID int64) []outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbound
	for _, s := range m.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
