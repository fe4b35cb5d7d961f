package model

import (
	"strings"
	"time"

	"telegram-link-gateway/internal/domain"
)

type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentPhoto ContentKind = "photo"
	ContentVideo ContentKind = "video"
)

// BroadcastMessage is the source message of a broadcast, keeping its original content type.
// MediaRef is a transport file reference for photo and video messages.
type BroadcastMessage struct {
	Kind     ContentKind
	Text     string
	MediaRef string
	Caption  string
}

func (m BroadcastMessage) Validate() error {
	switch m.Kind {
	case ContentText:
		if strings.TrimSpace(m.Text) == "" {
			return domain.ErrInvalidArgument
		}
	case ContentPhoto, ContentVideo:
		if m.MediaRef == "" {
			return domain.ErrInvalidArgument
		}
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

// BroadcastResult is the tally of a single broadcast pass.
type BroadcastResult struct {
	JobID    string
	Total    int
	Sent     int
	Blocked  int
	Failed   int
	Duration time.Duration
}
