//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing/fstest"
	"time"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/adapter"
	"telegram-link-gateway/internal/domain/ports/repository"
	"telegram-link-gateway/internal/infra/i18n"

	"github.com/rs/zerolog"
)

// -----------------------------
// Identity repo
// -----------------------------

type MockIdentityRepo struct {
	mu      sync.Mutex
	data    map[int64]*model.Identity
	upserts int

	FindOneFunc  func(ctx context.Context, id int64) (*model.Identity, error)
	UpsertFunc   func(ctx context.Context, id int64, patch model.IdentityPatch) error
	ListPageFunc func(ctx context.Context, skip, limit int) ([]*model.Identity, error)
	StatsFunc    func(ctx context.Context) (repository.StoreStats, error)
}

var _ repository.IdentityRepository = (*MockIdentityRepo)(nil)

func NewMockIdentityRepo() *MockIdentityRepo {
	return &MockIdentityRepo{data: map[int64]*model.Identity{}}
}

// Seed stores a copy of identity as-is.
func (r *MockIdentityRepo) Seed(identity *model.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *identity
	r.data[identity.ID] = &cp
}

func (r *MockIdentityRepo) Get(id int64) *model.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *i
	return &cp
}

func (r *MockIdentityRepo) FindOne(ctx context.Context, id int64) (*model.Identity, error) {
	if r.FindOneFunc != nil {
		return r.FindOneFunc(ctx, id)
	}
	if i := r.Get(id); i != nil {
		return i, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockIdentityRepo) Upsert(ctx context.Context, id int64, patch model.IdentityPatch) error {
	if r.UpsertFunc != nil {
		return r.UpsertFunc(ctx, id, patch)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	i, ok := r.data[id]
	if !ok {
		i = &model.Identity{ID: id, VerifiedUntil: model.EpochMin, Role: model.RoleStandard, CreatedAt: time.Now()}
		r.data[id] = i
	}
	patch.Apply(i)
	i.LastSeenAt = time.Now()
	return nil
}

func (r *MockIdentityRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data), nil
}

func (r *MockIdentityRepo) ListPage(ctx context.Context, skip, limit int) ([]*model.Identity, error) {
	if r.ListPageFunc != nil {
		return r.ListPageFunc(ctx, skip, limit)
	}
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

func (r *MockIdentityRepo) Stats(ctx context.Context) (repository.StoreStats, error) {
	if r.StatsFunc != nil {
		return r.StatsFunc(ctx)
	}
	return repository.StoreStats{UsedBytes: 1024}, nil
}

// -----------------------------
// Referral repo
// -----------------------------

type MockReferralRepo struct {
	mu     sync.Mutex
	byCode map[string]*model.ReferralRecord

	CreateFunc func(ctx context.Context, rec *model.ReferralRecord) error
}

var _ repository.ReferralRepository = (*MockReferralRepo)(nil)

func NewMockReferralRepo() *MockReferralRepo {
	return &MockReferralRepo{byCode: map[string]*model.ReferralRecord{}}
}

func (r *MockReferralRepo) Create(ctx context.Context, rec *model.ReferralRecord) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, rec)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	cp.Referred = append([]int64(nil), rec.Referred...)
	r.byCode[rec.Code] = &cp
	return nil
}

func (r *MockReferralRepo) FindByCode(ctx context.Context, code string) (*model.ReferralRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byCode[code]
	if !ok {
		return nil, domain.ErrCodeNotFound
	}
	cp := *rec
	cp.Referred = append([]int64(nil), rec.Referred...)
	return &cp, nil
}

func (r *MockReferralRepo) ExistsForReferrer(ctx context.Context, referrerID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.byCode {
		if rec.ReferrerID == referrerID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockReferralRepo) AppendReferral(ctx context.Context, code string, identityID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byCode[code]
	if !ok {
		return domain.ErrCodeNotFound
	}
	rec.Referred = append(rec.Referred, identityID)
	return nil
}

func (r *MockReferralRepo) ListByReferrer(ctx context.Context, referrerID int64) ([]*model.ReferralRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ReferralRecord
	for _, rec := range r.byCode {
		if rec.ReferrerID == referrerID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Code < out[b].Code })
	return out, nil
}

// -----------------------------
// Messenger
// -----------------------------

type sentMessage struct {
	ChatID int64
	Text   string
	Rows   [][]adapter.InlineButton
}

type MockMessenger struct {
	mu        sync.Mutex
	Sent      []sentMessage
	Delivered map[int64]int

	SendButtonsFunc func(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error
	DeliverFunc     func(ctx context.Context, chatID int64, msg model.BroadcastMessage) error
}

var _ adapter.Messenger = (*MockMessenger)(nil)

func NewMockMessenger() *MockMessenger {
	return &MockMessenger{Delivered: map[int64]int{}}
}

func (m *MockMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	return m.SendButtons(ctx, chatID, text, nil)
}

func (m *MockMessenger) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if m.SendButtonsFunc != nil {
		return m.SendButtonsFunc(ctx, chatID, text, rows)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Text: text, Rows: rows})
	return nil
}

func (m *MockMessenger) Deliver(ctx context.Context, chatID int64, msg model.BroadcastMessage) error {
	m.mu.Lock()
	m.Delivered[chatID]++
	m.mu.Unlock()
	if m.DeliverFunc != nil {
		return m.DeliverFunc(ctx, chatID, msg)
	}
	return nil
}

// -----------------------------
// Shortener and locker
// -----------------------------

type MockShortener struct {
	ShortenFunc func(ctx context.Context, longURL string) (string, error)
	calls       int
}

func (s *MockShortener) Shorten(ctx context.Context, longURL string) (string, error) {
	s.calls++
	if s.ShortenFunc != nil {
		return s.ShortenFunc(ctx, longURL)
	}
	return "https://sho.rt/abc", nil
}

type MockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	unlocked int
}

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrBroadcastInProgress
	}
	l.held[key] = "token"
	return "token", nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.unlocked++
	}
	return nil
}

// -----------------------------
// Logger and translator
// -----------------------------

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	testFS := fstest.MapFS{
		"locales/en.yaml": {
			Data: []byte("referral_notify: '%s joined with code %s'\nreferral_activate_button: 'Activate'\n"),
		},
	}
	translator, _ := i18n.NewTranslator(testFS, "en")
	return translator
}
