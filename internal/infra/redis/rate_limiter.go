package redis

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RateLimiter is a fixed-window counter per user and bot route.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit on key and reports whether the window still has room.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			// a counter without a ttl would lock the user out for good
			_ = r.client.Del(ctx, key)
			return false, err
		}
	}

	return count <= int64(limit), nil
}

// UserCommandKey buckets one user's use of a slash command.
func UserCommandKey(userID int64, command string) string {
	return fmt.Sprintf("rate_limit:%d:%s", userID, command)
}

// UserLinkKey buckets one user's plain-text link submissions.
func UserLinkKey(userID int64) string {
	return fmt.Sprintf("rate_limit:%d:link", userID)
}

// UserCallbackKey buckets one user's button presses by action. A trailing numeric argument is
// dropped so paging through list:0, list:1, ... shares a single bucket.
func UserCallbackKey(userID int64, data string) string {
	action := data
	if i := strings.LastIndexByte(data, ':'); i >= 0 && isDigits(data[i+1:]) {
		action = data[:i]
	}
	return fmt.Sprintf("rate_limit:%d:cb:%s", userID, action)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
