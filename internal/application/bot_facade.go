package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/adapter"
	"telegram-link-gateway/internal/infra/i18n"
	"telegram-link-gateway/internal/infra/logging"
	"telegram-link-gateway/internal/infra/metrics"
	"telegram-link-gateway/internal/usecase"

	"github.com/rs/zerolog"
)

// FacadeOptions carries the bot settings the handlers render into replies.
type FacadeOptions struct {
	AuditChannelID  int64
	WelcomePhoto    string
	TutorialURL     string
	VerificationTTL time.Duration
	PremiumTTL      time.Duration
}

// BotFacade composes the use cases into bot commands. Handlers return a Reply for the caller;
// user-facing failures are rendered into the reply and only infrastructure errors are returned.
type BotFacade struct {
	users     usecase.UserUseCase
	access    usecase.EntitlementUseCase
	verify    usecase.VerificationUseCase
	referrals usecase.ReferralUseCase
	links     usecase.LinkTransformer
	broadcast usecase.BroadcastUseCase
	stats     usecase.StatsUseCase
	messenger adapter.Messenger
	tr        *i18n.Translator
	opts      FacadeOptions
	log       *zerolog.Logger
}

func NewBotFacade(
	users usecase.UserUseCase,
	access usecase.EntitlementUseCase,
	verify usecase.VerificationUseCase,
	referrals usecase.ReferralUseCase,
	links usecase.LinkTransformer,
	broadcast usecase.BroadcastUseCase,
	stats usecase.StatsUseCase,
	messenger adapter.Messenger,
	tr *i18n.Translator,
	opts FacadeOptions,
	logger *zerolog.Logger,
) *BotFacade {
	return &BotFacade{
		users:     users,
		access:    access,
		verify:    verify,
		referrals: referrals,
		links:     links,
		broadcast: broadcast,
		stats:     stats,
		messenger: messenger,
		tr:        tr,
		opts:      opts,
		log:       logger,
	}
}

func (b *BotFacade) contact(ctx context.Context, c Caller) (*model.Identity, error) {
	identity, isNew, err := b.users.RegisterOrFetch(ctx, c.ID, c.DisplayName, c.Handle)
	if err != nil {
		return nil, fmt.Errorf("register/fetch identity: %w", err)
	}
	if isNew {
		b.audit(ctx, b.tr.T("audit_onboard", c.DisplayName, c.Handle, c.ID))
	}
	return identity, nil
}

// audit copies an event to the audit channel. It never fails the caller.
func (b *BotFacade) audit(ctx context.Context, text string) {
	if b.opts.AuditChannelID == 0 || b.messenger == nil {
		return
	}
	if err := b.messenger.SendMessage(ctx, b.opts.AuditChannelID, text); err != nil {
		logging.With(ctx, b.log).Warn().Err(err).Msg("audit forward failed")
	}
}

// HandleStart routes /start and its deep-link payload: empty, reffer-<code>, terabox-<id> or a verification token.
func (b *BotFacade) HandleStart(ctx context.Context, c Caller, payload string) (*Reply, error) {
	defer logging.TraceDuration(b.log, "BotFacade.HandleStart")()

	identity, err := b.contact(ctx, c)
	if err != nil {
		return nil, err
	}
	payload = strings.TrimSpace(payload)

	switch {
	case payload == "":
		return b.welcome(), nil

	case strings.HasPrefix(payload, usecase.PayloadReferralPrefix):
		code := strings.TrimPrefix(payload, usecase.PayloadReferralPrefix)
		err := b.referrals.RedeemCode(ctx, code, identity)
		switch {
		case err == nil:
			r := b.welcome()
			r.Text = b.tr.T("referral_joined") + "\n\n" + r.Text
			return r, nil
		case errors.Is(err, domain.ErrCodeNotFound):
			return textReply(b.tr.T("referral_code_not_found")), nil
		case errors.Is(err, domain.ErrInvalidArgument):
			return b.welcome(), nil
		default:
			return nil, err
		}

	case strings.HasPrefix(payload, usecase.PayloadResourcePrefix):
		if r, gated, err := b.gate(ctx, identity); gated || err != nil {
			return r, err
		}
		link, err := b.links.FromResourceID(strings.TrimPrefix(payload, usecase.PayloadResourcePrefix))
		if err != nil {
			return textReply(b.tr.T("link_unknown_resource")), nil
		}
		return b.linkReply(link), nil

	default:
		until, err := b.verify.Redeem(ctx, identity.ID, payload)
		switch {
		case err == nil:
			return textReply(b.tr.T("token_accepted", formatTime(until))), nil
		case errors.Is(err, domain.ErrTokenMismatch):
			return b.tokenRejected(ctx, identity)
		default:
			return nil, err
		}
	}
}

// HandleLink transforms a submitted link once the caller is entitled.
func (b *BotFacade) HandleLink(ctx context.Context, c Caller, text string) (*Reply, error) {
	defer logging.TraceDuration(b.log, "BotFacade.HandleLink")()

	identity, err := b.contact(ctx, c)
	if err != nil {
		return nil, err
	}
	link, err := b.links.Transform(text)
	if err != nil {
		metrics.IncLinkSubmission("rejected")
		return textReply(b.tr.T("link_rejected")), nil
	}
	b.audit(ctx, b.tr.T("audit_link", c.DisplayName, c.Handle, c.ID, link.Original))

	if r, gated, err := b.gate(ctx, identity); gated || err != nil {
		metrics.IncLinkSubmission("gated")
		return r, err
	}
	metrics.IncLinkSubmission("transformed")
	return b.linkReply(link), nil
}

// tokenRejected answers a payload that did not redeem. An identity that is still entitled keeps its
// window and gets no new token; otherwise the regular gate reply follows the rejection notice.
func (b *BotFacade) tokenRejected(ctx context.Context, identity *model.Identity) (*Reply, error) {
	decision := b.access.Evaluate(ctx, identity)
	if decision == model.Allowed {
		now := time.Now()
		until := identity.VerifiedUntil
		if identity.PremiumAt(now) && identity.PremiumUntil.After(until) {
			until = *identity.PremiumUntil
		}
		if until.After(now) {
			return textReply(b.tr.T("token_still_entitled", formatTime(until))), nil
		}
		return textReply(b.tr.T("token_not_needed")), nil
	}
	r, err := b.gateReply(ctx, identity, decision)
	if err != nil {
		return nil, err
	}
	notice := "token_invalid"
	if decision == model.RequiresVerification {
		notice = "token_rejected"
	}
	r.Text = b.tr.T(notice) + "\n\n" + r.Text
	return r, nil
}

// gate returns the gate reply when the identity is not entitled.
func (b *BotFacade) gate(ctx context.Context, identity *model.Identity) (*Reply, bool, error) {
	decision := b.access.Evaluate(ctx, identity)
	if decision == model.Allowed {
		return nil, false, nil
	}
	r, err := b.gateReply(ctx, identity, decision)
	return r, true, err
}

func (b *BotFacade) gateReply(ctx context.Context, identity *model.Identity, decision model.Decision) (*Reply, error) {
	if decision == model.RequiresPremium {
		return &Reply{
			Text:    b.tr.T("gate_premium", humanDuration(b.opts.PremiumTTL)),
			Buttons: [][]adapter.InlineButton{{{Text: b.tr.T("gate_premium_button"), Data: CallbackReferralNew}}},
		}, nil
	}
	return b.verificationReply(ctx, identity.ID)
}

func (b *BotFacade) verificationReply(ctx context.Context, id int64) (*Reply, error) {
	link, err := b.verify.Issue(ctx, id)
	if err != nil {
		return nil, err
	}
	rows := [][]adapter.InlineButton{{{Text: b.tr.T("gate_verify_button"), URL: link}}}
	if b.opts.TutorialURL != "" {
		rows = append(rows, []adapter.InlineButton{{Text: b.tr.T("tutorial_button"), URL: b.opts.TutorialURL}})
	}
	return &Reply{Text: b.tr.T("gate_verify", humanDuration(b.opts.VerificationTTL)), Buttons: rows}, nil
}

func (b *BotFacade) linkReply(link *model.TransformedLink) *Reply {
	rows := make([][]adapter.InlineButton, 0, len(link.PlaybackLinks)+1)
	for i, u := range link.PlaybackLinks {
		rows = append(rows, []adapter.InlineButton{{Text: b.tr.T("link_server_button", i+1), URL: u}})
	}
	rows = append(rows, []adapter.InlineButton{{Text: b.tr.T("link_share_button"), URL: link.ShareLink}})
	return &Reply{Text: b.tr.T("link_ready"), Buttons: rows}
}

func (b *BotFacade) welcome() *Reply {
	return &Reply{Text: b.tr.T("welcome_caption"), Photo: b.opts.WelcomePhoto}
}

func (b *BotFacade) HandleHelp(ctx context.Context) (*Reply, error) {
	return textReply(b.tr.T("help")), nil
}

// HandleBalance shows the caller's entitlement windows and referral totals.
func (b *BotFacade) HandleBalance(ctx context.Context, c Caller) (*Reply, error) {
	defer logging.TraceDuration(b.log, "BotFacade.HandleBalance")()

	identity, err := b.contact(ctx, c)
	if err != nil {
		return nil, err
	}
	summary, err := b.referrals.Summary(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	never := b.tr.T("balance_never")
	verified, premium := never, never
	if identity.VerifiedUntil.After(model.EpochMin) {
		verified = formatTime(identity.VerifiedUntil)
	}
	if identity.PremiumUntil != nil {
		premium = formatTime(*identity.PremiumUntil)
	}
	r := textReply(b.tr.T("balance", verified, premium, len(summary.Codes), summary.Referred))
	if len(summary.Codes) > 0 {
		r.Buttons = [][]adapter.InlineButton{{{Text: b.tr.T("referral_activate_button"), Data: usecase.CallbackActivatePremium}}}
	}
	return r, nil
}

// HandleRefer mints a referral code for the caller.
func (b *BotFacade) HandleRefer(ctx context.Context, c Caller) (*Reply, error) {
	defer logging.TraceDuration(b.log, "BotFacade.HandleRefer")()

	if _, err := b.contact(ctx, c); err != nil {
		return nil, err
	}
	_, link, err := b.referrals.CreateCode(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return textReply(b.tr.T("referral_created", link)), nil
}

// HandleActivatePremium is the referrer's confirmation step.
func (b *BotFacade) HandleActivatePremium(ctx context.Context, c Caller) (*Reply, error) {
	defer logging.TraceDuration(b.log, "BotFacade.HandleActivatePremium")()

	if _, err := b.contact(ctx, c); err != nil {
		return nil, err
	}
	until, err := b.referrals.ActivatePremium(ctx, c.ID)
	switch {
	case err == nil:
		return textReply(b.tr.T("premium_activated", formatTime(until))), nil
	case errors.Is(err, domain.ErrNoReferralRecord):
		return textReply(b.tr.T("premium_no_referral")), nil
	default:
		return nil, err
	}
}

// ---- admin ----

// Authorize returns domain.ErrNotAuthorized unless the caller holds the admin role.
func (b *BotFacade) Authorize(ctx context.Context, c Caller) error {
	identity, err := b.contact(ctx, c)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() {
		return domain.ErrNotAuthorized
	}
	return nil
}

// NotAuthorizedReply is the fixed answer to non-admins invoking admin commands.
func (b *BotFacade) NotAuthorizedReply() *Reply { return textReply(b.tr.T("not_authorized")) }

// ErrorReply is the generic answer when a handler fails.
func (b *BotFacade) ErrorReply() *Reply { return textReply(b.tr.T("generic_error")) }

// RateLimitedReply is sent when a caller exceeds the per-command budget.
func (b *BotFacade) RateLimitedReply() *Reply { return textReply(b.tr.T("rate_limited")) }

func (b *BotFacade) HandleUsers(ctx context.Context) (*Reply, error) {
	n, err := b.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	return textReply(b.tr.T("admin_users", n)), nil
}

func (b *BotFacade) HandleStats(ctx context.Context) (*Reply, error) {
	u, err := b.stats.Usage(ctx)
	if err != nil {
		return nil, err
	}
	return textReply(b.tr.T("admin_stats", u.Identities, humanBytes(u.UsedBytes), humanBytes(u.FreeBytes))), nil
}

// HandleList renders one zero-based page of identities with a Next button when more may follow.
func (b *BotFacade) HandleList(ctx context.Context, page int) (*Reply, error) {
	if page < 0 {
		page = 0
	}
	items, err := b.users.ListPage(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return textReply(b.tr.T("admin_list_empty")), nil
	}
	total, err := b.users.Count(ctx)
	if err != nil {
		return nil, err
	}

	first := page*usecase.ListPageSize + 1
	var sb strings.Builder
	sb.WriteString(b.tr.T("admin_list_header", page+1, first, first+len(items)-1, total))
	for _, i := range items {
		sb.WriteString("\n")
		sb.WriteString(strconv.FormatInt(i.ID, 10))
		if i.DisplayName != "" {
			sb.WriteString(" " + i.DisplayName)
		}
		if i.Handle != "" {
			sb.WriteString(" @" + i.Handle)
		}
	}
	r := textReply(sb.String())
	if len(items) == usecase.ListPageSize && first+len(items)-1 < total {
		r.Buttons = [][]adapter.InlineButton{{{Text: b.tr.T("admin_list_next"), Data: CallbackListPrefix + strconv.Itoa(page+1)}}}
	}
	return r, nil
}

// HandleBroadcast fans msg out to every identity. msg is nil when the command was not a reply.
func (b *BotFacade) HandleBroadcast(ctx context.Context, msg *model.BroadcastMessage) (*Reply, error) {
	defer logging.TraceDuration(b.log, "BotFacade.HandleBroadcast")()

	if msg == nil {
		return textReply(b.tr.T("broadcast_missing_reply")), nil
	}
	res, err := b.broadcast.Broadcast(ctx, *msg)
	switch {
	case err == nil:
		return textReply(b.tr.T("broadcast_done", res.Total, res.Sent, res.Blocked, res.Failed)), nil
	case errors.Is(err, domain.ErrInvalidArgument):
		return textReply(b.tr.T("broadcast_unsupported")), nil
	case errors.Is(err, domain.ErrBroadcastInProgress):
		return textReply(b.tr.T("broadcast_busy")), nil
	default:
		return nil, err
	}
}

// HandleActivate lets an admin run the premium activation for a referrer by id.
func (b *BotFacade) HandleActivate(ctx context.Context, args string) (*Reply, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id == 0 {
		return textReply(b.tr.T("admin_activate_usage")), nil
	}
	until, err := b.referrals.ActivatePremium(ctx, id)
	switch {
	case err == nil:
		return textReply(b.tr.T("admin_activate_done", id, formatTime(until))), nil
	case errors.Is(err, domain.ErrNoReferralRecord):
		return textReply(b.tr.T("premium_no_referral")), nil
	default:
		return nil, err
	}
}
