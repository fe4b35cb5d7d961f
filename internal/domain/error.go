package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrReadDatabaseRow = errors.New("failed to read database row")

	// Access control
	ErrNotAuthorized = errors.New("not authorized")
	ErrTokenMismatch = errors.New("verification token does not match")

	// Referrals
	ErrCodeNotFound     = errors.New("referral code not found")
	ErrNoReferralRecord = errors.New("no referral record for referrer")

	// Links and broadcast
	ErrNotALink            = errors.New("input is not an http(s) link")
	ErrMissingReplyTarget  = errors.New("broadcast requires a replied-to message")
	ErrBroadcastInProgress = errors.New("another broadcast is in progress")
)
