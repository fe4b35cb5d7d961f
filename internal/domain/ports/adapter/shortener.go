package adapter

import "context"

// LinkShortener exchanges a long URL for a short one through a third-party service.
type LinkShortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}
