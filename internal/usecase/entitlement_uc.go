package usecase

import (
	"context"
	"fmt"
	"time"

	"telegram-link-gateway/internal/config"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// AccessPolicy decides whether a non-admin identity may use the gated feature at a given instant.
type AccessPolicy interface {
	Name() string
	Evaluate(identity *model.Identity, now time.Time) model.Decision
}

type adGatedPolicy struct{}

func (adGatedPolicy) Name() string { return config.PolicyAdGated }

func (adGatedPolicy) Evaluate(identity *model.Identity, now time.Time) model.Decision {
	if identity.VerifiedAt(now) {
		return model.Allowed
	}
	return model.RequiresVerification
}

type premiumGatedPolicy struct{}

func (premiumGatedPolicy) Name() string { return config.PolicyPremiumGated }

func (premiumGatedPolicy) Evaluate(identity *model.Identity, now time.Time) model.Decision {
	if identity.PremiumAt(now) {
		return model.Allowed
	}
	return model.RequiresPremium
}

// NewAccessPolicy returns the strategy for an access.policy value.
func NewAccessPolicy(name string) (AccessPolicy, error) {
	switch name {
	case config.PolicyAdGated:
		return adGatedPolicy{}, nil
	case config.PolicyPremiumGated:
		return premiumGatedPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown access policy %q", name)
	}
}

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

type EntitlementUseCase interface {
	Evaluate(ctx context.Context, identity *model.Identity) model.Decision
	PolicyName() string
}

type entitlementUC struct {
	policy AccessPolicy
	log    *zerolog.Logger
}

func NewEntitlementUseCase(policy AccessPolicy, logger *zerolog.Logger) *entitlementUC {
	return &entitlementUC{policy: policy, log: logger}
}

// Evaluate never touches the store. Admins are always allowed; an unknown identity is gated.
func (e *entitlementUC) Evaluate(ctx context.Context, identity *model.Identity) model.Decision {
	if identity == nil {
		identity = &model.Identity{VerifiedUntil: model.EpochMin}
	}
	decision := model.Allowed
	if !identity.IsAdmin() {
		decision = e.policy.Evaluate(identity, time.Now())
	}
	metrics.IncAccessDecision(e.policy.Name(), decision.String())
	e.log.Debug().Int64("tg_id", identity.ID).Str("policy", e.policy.Name()).Str("decision", decision.String()).Msg("access evaluated")
	return decision
}

func (e *entitlementUC) PolicyName() string { return e.policy.Name() }
