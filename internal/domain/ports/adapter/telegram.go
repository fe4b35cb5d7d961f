// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"
	"errors"
	"fmt"

	"telegram-link-gateway/internal/domain/model"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// Messenger is the outbound side of the bot platform.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
	// Deliver sends a broadcast message preserving its content type.
	// Failures are reported as *DeliveryError.
	Deliver(ctx context.Context, chatID int64, msg model.BroadcastMessage) error
}

// DeliveryFailure classifies why a message could not be delivered.
type DeliveryFailure int

const (
	FailureOther DeliveryFailure = iota
	// FailureBlocked means the recipient disabled receipt from this bot.
	FailureBlocked
)

func (f DeliveryFailure) String() string {
	if f == FailureBlocked {
		return "blocked"
	}
	return "failed"
}

// DeliveryError is the structured transport error returned by Messenger.Deliver.
type DeliveryError struct {
	Kind DeliveryFailure
	Code int
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery %s (code %d): %v", e.Kind, e.Code, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsBlocked reports whether err is a delivery failure caused by the recipient blocking the bot.
func IsBlocked(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Kind == FailureBlocked
}
