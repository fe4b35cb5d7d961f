package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/adapter"
	"telegram-link-gateway/internal/domain/ports/repository"
	"telegram-link-gateway/internal/infra/logging"
	"telegram-link-gateway/internal/infra/metrics"
	"telegram-link-gateway/internal/infra/redis"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	broadcastLockKey = "broadcast:lock"
	broadcastLockTTL = time.Hour
	snapshotPageSize = 500
)

// Compile-time check
var _ BroadcastUseCase = (*broadcastUC)(nil)

type BroadcastUseCase interface {
	// Broadcast delivers msg to every known identity once and returns the tally.
	// Individual delivery failures never abort the pass.
	Broadcast(ctx context.Context, msg model.BroadcastMessage) (*model.BroadcastResult, error)
}

type broadcastUC struct {
	identities  repository.IdentityRepository
	messenger   adapter.Messenger
	locker      redis.Locker // optional
	concurrency int
	limiter     *rate.Limiter
	log         *zerolog.Logger
}

func NewBroadcastUseCase(
	identities repository.IdentityRepository,
	messenger adapter.Messenger,
	locker redis.Locker,
	concurrency int,
	ratePerSecond float64,
	logger *zerolog.Logger,
) *broadcastUC {
	if concurrency <= 0 {
		concurrency = 1
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &broadcastUC{
		identities:  identities,
		messenger:   messenger,
		locker:      locker,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, concurrency),
		log:         logger,
	}
}

func (b *broadcastUC) Broadcast(ctx context.Context, msg model.BroadcastMessage) (*model.BroadcastResult, error) {
	defer logging.TraceDuration(b.log, "BroadcastUC.Broadcast")()

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	jobID := ulid.Make().String()
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, b.log)

	if b.locker != nil {
		token, err := b.locker.TryLock(ctx, broadcastLockKey, broadcastLockTTL)
		switch {
		case errors.Is(err, domain.ErrBroadcastInProgress):
			return nil, err
		case err != nil:
			log.Warn().Err(err).Msg("broadcast lock unavailable, continuing without it")
		default:
			defer func() {
				if err := b.locker.Unlock(context.Background(), broadcastLockKey, token); err != nil {
					log.Warn().Err(err).Msg("failed to release broadcast lock")
				}
			}()
		}
	}

	ids, err := b.snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to snapshot identities for broadcast")
		return nil, err
	}
	log.Info().Int("recipients", len(ids)).Str("kind", string(msg.Kind)).Msg("broadcast started")

	start := time.Now()
	var sent, blocked, failed int64
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, id := range ids {
		if err := b.limiter.Wait(ctx); err != nil {
			// cancelled: whatever was not attempted counts as failed
			atomic.AddInt64(&failed, int64(len(ids)-i))
			log.Warn().Err(err).Int("skipped", len(ids)-i).Msg("broadcast interrupted")
			break
		}
		chatID := id
		g.Go(func() error {
			err := b.messenger.Deliver(ctx, chatID, msg)
			switch {
			case err == nil:
				atomic.AddInt64(&sent, 1)
			case adapter.IsBlocked(err):
				atomic.AddInt64(&blocked, 1)
				log.Debug().Int64("tg_id", chatID).Msg("recipient blocked the bot")
			default:
				atomic.AddInt64(&failed, 1)
				log.Warn().Err(err).Int64("tg_id", chatID).Msg("broadcast delivery failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	res := &model.BroadcastResult{
		JobID:    jobID,
		Total:    len(ids),
		Sent:     int(sent),
		Blocked:  int(blocked),
		Failed:   int(failed),
		Duration: time.Since(start),
	}
	metrics.ObserveBroadcast(res.Sent, res.Blocked, res.Failed, res.Duration.Seconds())
	log.Info().Int("total", res.Total).Int("sent", res.Sent).Int("blocked", res.Blocked).Int("failed", res.Failed).
		Dur("duration", res.Duration).Msg("broadcast finished")
	return res, nil
}

// snapshot collects every identity key before the first send. Identities inserted while paging
// shift later pages, so keys already collected are skipped.
func (b *broadcastUC) snapshot(ctx context.Context) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]struct{})
	for skip := 0; ; skip += snapshotPageSize {
		page, err := b.identities.ListPage(ctx, skip, snapshotPageSize)
		if err != nil {
			return nil, err
		}
		for _, identity := range page {
			if _, dup := seen[identity.ID]; dup {
				continue
			}
			seen[identity.ID] = struct{}{}
			ids = append(ids, identity.ID)
		}
		if len(page) < snapshotPageSize {
			return ids, nil
		}
	}
}
