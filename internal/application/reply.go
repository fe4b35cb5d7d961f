package application

import (
	"fmt"
	"time"

	"telegram-link-gateway/internal/domain/ports/adapter"
)

// Callback data understood by the bot router.
const (
	CallbackReferralNew = "ref:new"
	CallbackListPrefix  = "list:"
)

// Caller is the Telegram user behind an inbound update.
type Caller struct {
	ID          int64
	DisplayName string
	Handle      string
}

// Reply is a transport-agnostic answer. When Photo is set Text is sent as its caption.
type Reply struct {
	Text    string
	Photo   string
	Buttons [][]adapter.InlineButton
}

func textReply(text string) *Reply { return &Reply{Text: text} }

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
