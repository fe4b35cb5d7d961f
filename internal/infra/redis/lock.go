// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"telegram-link-gateway/internal/domain"

	"github.com/google/uuid"
)

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	client RedisClient
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{client: c}
}

// TryLock takes the lock once; a held lock yields domain.ErrBroadcastInProgress.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrBroadcastInProgress
	}
	return token, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return l.client.CompareAndDelete(ctx, key, token)
}
