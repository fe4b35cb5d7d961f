package model

import (
	"crypto/subtle"
	"time"

	"telegram-link-gateway/internal/domain"
)

// Role separates administrators from regular users.
type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// EpochMin is the "never verified" instant stored in verified_until.
var EpochMin = time.Unix(0, 0).UTC()

// Identity is the durable record of one Telegram user and their entitlements.
type Identity struct {
	ID            int64
	DisplayName   string
	Handle        string
	VerifiedUntil time.Time
	PremiumUntil  *time.Time
	ActiveToken   string // empty means no live token
	Role          Role
	CreatedAt     time.Time
	LastSeenAt    time.Time
}

func NewIdentity(id int64, displayName, handle string) (*Identity, error) {
	if id == 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Identity{
		ID:            id,
		DisplayName:   displayName,
		Handle:        handle,
		VerifiedUntil: EpochMin,
		Role:          RoleStandard,
		CreatedAt:     now,
		LastSeenAt:    now,
	}, nil
}

func (i *Identity) IsZero() bool  { return i == nil || i.ID == 0 }
func (i *Identity) IsAdmin() bool { return i != nil && i.Role == RoleAdmin }

// VerifiedAt reports whether the ad-gated window is open at t.
func (i *Identity) VerifiedAt(t time.Time) bool {
	return i.VerifiedUntil.After(t)
}

// PremiumAt reports whether the premium window is open at t.
func (i *Identity) PremiumAt(t time.Time) bool {
	return i.PremiumUntil != nil && i.PremiumUntil.After(t)
}

// TokenMatches compares the presented token with the live one in constant time.
// An identity without a live token never matches.
func (i *Identity) TokenMatches(presented string) bool {
	if i.ActiveToken == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(i.ActiveToken), []byte(presented)) == 1
}

// IdentityPatch is a partial update applied by the store's upsert-by-key.
// Nil fields are left untouched; on insert they take their defaults.
type IdentityPatch struct {
	DisplayName   *string
	Handle        *string
	Role          *Role
	VerifiedUntil *time.Time
	PremiumUntil  *time.Time
	ActiveToken   *string
}

func (p IdentityPatch) IsEmpty() bool {
	return p.DisplayName == nil && p.Handle == nil && p.Role == nil &&
		p.VerifiedUntil == nil && p.PremiumUntil == nil && p.ActiveToken == nil
}

// Apply copies the non-nil patch fields onto the identity.
func (p IdentityPatch) Apply(i *Identity) {
	if p.DisplayName != nil {
		i.DisplayName = *p.DisplayName
	}
	if p.Handle != nil {
		i.Handle = *p.Handle
	}
	if p.Role != nil {
		i.Role = *p.Role
	}
	if p.VerifiedUntil != nil {
		i.VerifiedUntil = *p.VerifiedUntil
	}
	if p.PremiumUntil != nil {
		t := *p.PremiumUntil
		i.PremiumUntil = &t
	}
	if p.ActiveToken != nil {
		i.ActiveToken = *p.ActiveToken
	}
}
