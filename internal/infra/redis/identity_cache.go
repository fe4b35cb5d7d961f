package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/repository"
	"telegram-link-gateway/internal/infra/metrics"
)

var _ repository.IdentityRepository = (*identityCacheDecorator)(nil)

// identityCacheDecorator serves FindOne from Redis. Writes go straight to the store, bump the
// identity's generation and evict the cached entry.
//
// Every cached entry carries the generation read before the store read that produced it. A hit
// whose generation no longer matches is ignored, so a read racing a write can never bring the
// older row back.
type identityCacheDecorator struct {
	inner repository.IdentityRepository
	cache RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

type cachedIdentity struct {
	Gen      string          `json:"gen"`
	Identity *model.Identity `json:"identity"`
}

func NewIdentityCacheDecorator(inner repository.IdentityRepository, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.IdentityRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &identityCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func identityKey(id int64) string    { return fmt.Sprintf("identity:%d", id) }
func identityGenKey(id int64) string { return fmt.Sprintf("identity:%d:gen", id) }

// generation returns the current write generation; a missing key is generation "".
func (d *identityCacheDecorator) generation(ctx context.Context, id int64) (string, error) {
	gen, err := d.cache.Get(ctx, identityGenKey(id))
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return gen, err
}

func (d *identityCacheDecorator) FindOne(ctx context.Context, id int64) (*model.Identity, error) {
	key := identityKey(id)
	gen, genErr := d.generation(ctx, id)
	if genErr != nil {
		metrics.IncCacheRequest("identity", "error")
		return d.inner.FindOne(ctx, id)
	}

	val, err := d.cache.Get(ctx, key)
	if err == nil && val != "" {
		var c cachedIdentity
		if json.Unmarshal([]byte(val), &c) == nil && c.Identity != nil {
			if c.Gen == gen {
				metrics.IncCacheRequest("identity", "hit")
				return c.Identity, nil
			}
			metrics.IncCacheRequest("identity", "stale")
		}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest("identity", "error")
	}

	metrics.IncCacheRequest("identity", "miss")
	i, err := d.inner.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(cachedIdentity{Gen: gen, Identity: i}); err == nil {
		_ = d.cache.Set(ctx, key, string(b), d.ttl)
	}
	return i, nil
}

func (d *identityCacheDecorator) Upsert(ctx context.Context, id int64, patch model.IdentityPatch) error {
	if err := d.inner.Upsert(ctx, id, patch); err != nil {
		return err
	}
	genKey := identityGenKey(id)
	_, incrErr := d.cache.Incr(ctx, genKey)
	if incrErr == nil {
		// outlive every entry tagged with an older generation
		_ = d.cache.Expire(ctx, genKey, 2*d.ttl)
	}
	delErr := d.cache.Del(ctx, identityKey(id))
	if incrErr != nil && delErr != nil {
		metrics.IncCacheRequest("identity", "error")
		return fmt.Errorf("invalidate cached identity %d: %w", id, errors.Join(incrErr, delErr))
	}
	if incrErr != nil || delErr != nil {
		metrics.IncCacheRequest("identity", "error")
		d.log.Warn().Int64("tg_id", id).AnErr("incr", incrErr).AnErr("del", delErr).Msg("partial identity cache invalidation")
	}
	return nil
}

func (d *identityCacheDecorator) Count(ctx context.Context) (int, error) {
	return d.inner.Count(ctx)
}

func (d *identityCacheDecorator) ListPage(ctx context.Context, skip, limit int) ([]*model.Identity, error) {
	return d.inner.ListPage(ctx, skip, limit)
}

func (d *identityCacheDecorator) Stats(ctx context.Context) (repository.StoreStats, error) {
	return d.inner.Stats(ctx)
}
