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
	"telegram-link-gateway/internal/infra/i18n"
	"telegram-link-gateway/internal/infra/logging"
	"telegram-link-gateway/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Callback data of the referrer's activation button.
const CallbackActivatePremium = "ref:activate"

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// ReferralSummary aggregates every code a referrer owns.
type ReferralSummary struct {
	Codes    []string
	Referred int
}

// Compile-time check
var _ ReferralUseCase = (*referralUC)(nil)

type ReferralUseCase interface {
	// CreateCode mints a new code for the referrer and returns it with its share link.
	// Repeated calls create additional codes.
	CreateCode(ctx context.Context, referrerID int64) (code string, link string, err error)
	// RedeemCode credits newIdentity to the code's owner and notifies them. It grants nothing.
	RedeemCode(ctx context.Context, code string, newIdentity *model.Identity) error
	// ActivatePremium extends premium for a referrer that owns at least one code.
	ActivatePremium(ctx context.Context, referrerID int64) (time.Time, error)
	Summary(ctx context.Context, referrerID int64) (*ReferralSummary, error)
}

type referralUC struct {
	referrals   repository.ReferralRepository
	identities  repository.IdentityRepository
	messenger   adapter.Messenger
	translator  *i18n.Translator
	botUsername string
	premiumTTL  time.Duration
	log         *zerolog.Logger
}

func NewReferralUseCase(
	referrals repository.ReferralRepository,
	identities repository.IdentityRepository,
	messenger adapter.Messenger,
	translator *i18n.Translator,
	botUsername string,
	premiumTTL time.Duration,
	logger *zerolog.Logger,
) *referralUC {
	return &referralUC{
		referrals:   referrals,
		identities:  identities,
		messenger:   messenger,
		translator:  translator,
		botUsername: botUsername,
		premiumTTL:  premiumTTL,
		log:         logger,
	}
}

func (r *referralUC) CreateCode(ctx context.Context, referrerID int64) (string, string, error) {
	defer logging.TraceDuration(r.log, "ReferralUC.CreateCode")()

	code, err := newReferralCode()
	if err != nil {
		return "", "", err
	}
	rec := &model.ReferralRecord{Code: code, ReferrerID: referrerID, CreatedAt: time.Now()}
	if err := r.referrals.Create(ctx, rec); err != nil {
		return "", "", fmt.Errorf("create referral: %w", err)
	}
	metrics.IncReferralEvent("created")
	r.log.Info().Int64("tg_id", referrerID).Str("code", code).Msg("referral code created")
	return code, DeepLink(r.botUsername, PayloadReferralPrefix+code), nil
}

func (r *referralUC) RedeemCode(ctx context.Context, code string, newIdentity *model.Identity) error {
	defer logging.TraceDuration(r.log, "ReferralUC.RedeemCode")()

	if newIdentity.IsZero() {
		return domain.ErrInvalidArgument
	}
	rec, err := r.referrals.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrCodeNotFound) {
			metrics.IncReferralEvent("code_not_found")
		}
		return err
	}
	if rec.ReferrerID == newIdentity.ID {
		return domain.ErrInvalidArgument
	}
	if err := r.referrals.AppendReferral(ctx, code, newIdentity.ID); err != nil {
		return err
	}
	metrics.IncReferralEvent("redeemed")
	r.log.Info().Int64("tg_id", newIdentity.ID).Int64("referrer", rec.ReferrerID).Str("code", code).Msg("referral redeemed")

	who := newIdentity.DisplayName
	if newIdentity.Handle != "" {
		who = "@" + newIdentity.Handle
	}
	rows := [][]adapter.InlineButton{{{Text: r.translator.T("referral_activate_button"), Data: CallbackActivatePremium}}}
	if err := r.messenger.SendButtons(ctx, rec.ReferrerID, r.translator.T("referral_notify", who, code), rows); err != nil {
		// the credit is already stored; the referrer can still activate from /balance
		r.log.Warn().Err(err).Int64("referrer", rec.ReferrerID).Msg("failed to notify referrer")
	}
	return nil
}

func (r *referralUC) ActivatePremium(ctx context.Context, referrerID int64) (time.Time, error) {
	defer logging.TraceDuration(r.log, "ReferralUC.ActivatePremium")()

	ok, err := r.referrals.ExistsForReferrer(ctx, referrerID)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, domain.ErrNoReferralRecord
	}

	until := time.Now().Add(r.premiumTTL)
	current, err := r.identities.FindOne(ctx, referrerID)
	switch {
	case err == nil:
		if current.PremiumUntil != nil && current.PremiumUntil.After(until) {
			until = *current.PremiumUntil
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		return time.Time{}, err
	}

	if err := r.identities.Upsert(ctx, referrerID, model.IdentityPatch{PremiumUntil: &until}); err != nil {
		return time.Time{}, fmt.Errorf("store premium: %w", err)
	}
	metrics.IncReferralEvent("premium_activated")
	r.log.Info().Int64("tg_id", referrerID).Time("premium_until", until).Msg("premium activated")
	return until, nil
}

func (r *referralUC) Summary(ctx context.Context, referrerID int64) (*ReferralSummary, error) {
	defer logging.TraceDuration(r.log, "ReferralUC.Summary")()

	recs, err := r.referrals.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	s := &ReferralSummary{Codes: make([]string, 0, len(recs))}
	for _, rec := range recs {
		s.Codes = append(s.Codes, rec.Code)
		s.Referred += rec.ReferredCount()
	}
	return s, nil
}

func newReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// 256 is a multiple of 32, so the modulo is unbiased.
	for i, b := range buf {
		buf[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return string(buf), nil
}
