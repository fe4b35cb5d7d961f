package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/adapter"
	"telegram-link-gateway/internal/domain/ports/repository"
	"telegram-link-gateway/internal/infra/logging"
	"telegram-link-gateway/internal/infra/metrics"

	"github.com/rs/zerolog"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Compile-time check
var _ VerificationUseCase = (*verificationUC)(nil)

// VerificationUseCase issues and redeems the single-use tokens behind the ad-gated policy.
type VerificationUseCase interface {
	// Issue mints a new token for the identity, replacing any live one, and returns the activation link.
	// Shortener failures fall back to the plain deep link.
	Issue(ctx context.Context, identityID int64) (string, error)
	// Redeem accepts the presented token if it equals the live one and returns the new verified-until time.
	// Any other token yields domain.ErrTokenMismatch and leaves the identity unchanged.
	Redeem(ctx context.Context, identityID int64, presented string) (time.Time, error)
}

type verificationUC struct {
	identities  repository.IdentityRepository
	shortener   adapter.LinkShortener
	botUsername string
	tokenLength int
	ttl         time.Duration
	dev         bool
	log         *zerolog.Logger
}

func NewVerificationUseCase(
	identities repository.IdentityRepository,
	shortener adapter.LinkShortener,
	botUsername string,
	tokenLength int,
	ttl time.Duration,
	dev bool,
	logger *zerolog.Logger,
) *verificationUC {
	if tokenLength <= 0 {
		tokenLength = 16
	}
	return &verificationUC{
		identities:  identities,
		shortener:   shortener,
		botUsername: botUsername,
		tokenLength: tokenLength,
		ttl:         ttl,
		dev:         dev,
		log:         logger,
	}
}

func (v *verificationUC) Issue(ctx context.Context, identityID int64) (string, error) {
	defer logging.TraceDuration(v.log, "VerificationUC.Issue")()

	token, err := GenerateToken(v.tokenLength)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	reset := model.EpochMin
	if err := v.identities.Upsert(ctx, identityID, model.IdentityPatch{ActiveToken: &token, VerifiedUntil: &reset}); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	metrics.IncTokenIssued()

	link := DeepLink(v.botUsername, token)
	v.log.Info().Int64("tg_id", identityID).Str("token", logging.Redact(token, v.dev)).Msg("verification token issued")

	if v.shortener == nil {
		return link, nil
	}
	short, err := v.shortener.Shorten(ctx, link)
	if err != nil || short == "" {
		metrics.IncShortener("fallback")
		v.log.Warn().Err(err).Int64("tg_id", identityID).Msg("shortener unavailable, using deep link")
		return link, nil
	}
	metrics.IncShortener("ok")
	return short, nil
}

func (v *verificationUC) Redeem(ctx context.Context, identityID int64, presented string) (time.Time, error) {
	defer logging.TraceDuration(v.log, "VerificationUC.Redeem")()

	identity, err := v.identities.FindOne(ctx, identityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncTokenRedemption("rejected")
			return time.Time{}, domain.ErrTokenMismatch
		}
		return time.Time{}, err
	}
	if !identity.TokenMatches(presented) {
		metrics.IncTokenRedemption("rejected")
		v.log.Info().Int64("tg_id", identityID).Msg("verification token rejected")
		return time.Time{}, domain.ErrTokenMismatch
	}

	until := time.Now().Add(v.ttl)
	if identity.VerifiedUntil.After(until) {
		until = identity.VerifiedUntil
	}
	consumed := ""
	if err := v.identities.Upsert(ctx, identityID, model.IdentityPatch{VerifiedUntil: &until, ActiveToken: &consumed}); err != nil {
		return time.Time{}, fmt.Errorf("store verification: %w", err)
	}
	metrics.IncTokenRedemption("accepted")
	v.log.Info().Int64("tg_id", identityID).Time("verified_until", until).Msg("verification token accepted")
	return until, nil
}

// GenerateToken returns n characters drawn uniformly from [A-Za-z0-9] using crypto/rand.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", domain.ErrInvalidArgument
	}
	// 248 is the largest multiple of 62 below 256; higher bytes are rejected to avoid bias.
	const limit = 248
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
