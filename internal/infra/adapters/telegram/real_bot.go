package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-link-gateway/internal/application"
	"telegram-link-gateway/internal/infra/logging"
	"telegram-link-gateway/internal/infra/metrics"
	red "telegram-link-gateway/internal/infra/redis"
	"telegram-link-gateway/internal/infra/worker"
)

const (
	commandLimit  = 20
	callbackLimit = 30
	limitWindow   = time.Minute
	updateTimeout = 30 * time.Second
)

// RealTelegramBotAdapter routes Telegram updates to the bot facade and renders its replies.
// Updates arrive either from long polling or from the webhook handler and are
// processed on the worker pool.
type RealTelegramBotAdapter struct {
	api         *tgbotapi.BotAPI
	token       string
	sender      replySender
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	pool        *worker.Pool
	log         *zerolog.Logger

	cancel context.CancelFunc
}

// replySender is the part of *Sender the router needs.
type replySender interface {
	SendReply(ctx context.Context, chatID int64, r *application.Reply) error
	answerCallback(id string)
}

// NewBotAPI connects to Telegram and checks the token.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// NewRealTelegramBotAdapter wires the router. rateLimiter may be nil, which disables per-user limits.
func NewRealTelegramBotAdapter(
	api *tgbotapi.BotAPI,
	token string,
	sender *Sender,
	facade *application.BotFacade,
	rateLimiter *red.RateLimiter,
	pool *worker.Pool,
	logger *zerolog.Logger,
) *RealTelegramBotAdapter {
	return &RealTelegramBotAdapter{
		api:         api,
		token:       token,
		sender:      sender,
		facade:      facade,
		rateLimiter: rateLimiter,
		pool:        pool,
		log:         logger,
	}
}

// StartPolling drops any registered webhook and feeds getUpdates into the worker pool until StopPolling.
func (a *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if _, err := a.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	ctx, a.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.api.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				a.api.StopReceivingUpdates()
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				a.enqueue(ctx, upd)
			}
		}
	}()
	a.log.Info().Str("bot", a.api.Self.UserName).Msg("telegram polling started")
	return nil
}

func (a *RealTelegramBotAdapter) StopPolling() {
	if a.cancel != nil {
		a.cancel()
	}
}

// RegisterWebhook points Telegram at publicURL/telegram/<token>.
func (a *RealTelegramBotAdapter) RegisterWebhook(publicURL string) error {
	hook := strings.TrimRight(publicURL, "/") + WebhookPath(a.token)
	wh, err := tgbotapi.NewWebhook(hook)
	if err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if _, err := a.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	a.log.Info().Str("url", strings.TrimRight(publicURL, "/")+"/telegram/***").Msg("telegram webhook registered")
	return nil
}

// WebhookPath is the route Telegram posts updates to.
func WebhookPath(token string) string { return "/telegram/" + token }

// WebhookHandler accepts updates posted by Telegram. It is mounted at /telegram/{token}.
func (a *RealTelegramBotAdapter) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "token") != a.token {
			http.NotFound(w, r)
			return
		}
		var upd tgbotapi.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&upd); err != nil {
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		// Telegram retries non-2xx responses, so the update is acknowledged once queued.
		a.enqueue(r.Context(), upd)
		w.WriteHeader(http.StatusOK)
	}
}

func (a *RealTelegramBotAdapter) enqueue(ctx context.Context, upd tgbotapi.Update) {
	task := func(ctx context.Context) error {
		return a.HandleUpdate(ctx, upd)
	}
	if err := a.pool.Submit(ctx, task); err != nil {
		a.log.Warn().Err(err).Int("update_id", upd.UpdateID).Msg("update dropped")
	}
}

// HandleUpdate dispatches a single update.
func (a *RealTelegramBotAdapter) HandleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	switch {
	case upd.CallbackQuery != nil:
		ctx, cancel := context.WithTimeout(ctx, updateTimeout)
		defer cancel()
		return a.handleQuery(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		return a.handleMessage(ctx, upd.Message)
	}
	return nil
}

func (a *RealTelegramBotAdapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return nil
	}
	chatID := msg.Chat.ID
	ctx = logging.WithTgID(ctx, msg.From.ID)

	if !msg.IsCommand() {
		if strings.TrimSpace(msg.Text) == "" {
			return nil
		}
		ctx, cancel := context.WithTimeout(ctx, updateTimeout)
		defer cancel()
		if !a.allow(ctx, red.UserLinkKey(msg.From.ID), commandLimit) {
			return a.reply(ctx, chatID, a.facade.RateLimitedReply())
		}
		reply, err := a.facade.HandleLink(ctx, callerFrom(msg.From), msg.Text)
		return a.finish(ctx, chatID, "link", reply, err)
	}

	cmd := msg.Command()
	h, ok := a.commandRoutes()[cmd]
	if !ok {
		return nil
	}
	// a broadcast runs until every recipient was attempted
	if cmd != "broadcast" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, updateTimeout)
		defer cancel()
	}
	metrics.IncTelegramCommand(cmd)
	if !a.allow(ctx, red.UserCommandKey(msg.From.ID, cmd), commandLimit) {
		return a.reply(ctx, chatID, a.facade.RateLimitedReply())
	}
	reply, err := h(ctx, msg)
	return a.finish(ctx, chatID, cmd, reply, err)
}

func (a *RealTelegramBotAdapter) handleQuery(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	// stop the client-side spinner whatever happens next
	defer a.sender.answerCallback(q.ID)

	if q.From == nil {
		return nil
	}
	chatID := q.From.ID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}
	ctx = logging.WithTgID(ctx, q.From.ID)
	if !a.allow(ctx, red.UserCallbackKey(q.From.ID, q.Data), callbackLimit) {
		return a.reply(ctx, chatID, a.facade.RateLimitedReply())
	}

	caller := callerFrom(q.From)
	if h, ok := a.cbRoutes()[q.Data]; ok {
		reply, err := h(ctx, caller, q.Data)
		return a.finish(ctx, chatID, q.Data, reply, err)
	}
	for _, r := range a.cbPrefixRoutes() {
		if strings.HasPrefix(q.Data, r.Prefix) {
			reply, err := r.Fn(ctx, caller, strings.TrimPrefix(q.Data, r.Prefix))
			return a.finish(ctx, chatID, r.Prefix, reply, err)
		}
	}
	a.log.Debug().Str("data", q.Data).Msg("unhandled callback")
	return nil
}

// finish renders the handler outcome. Handler errors become the generic error reply.
func (a *RealTelegramBotAdapter) finish(ctx context.Context, chatID int64, route string, reply *application.Reply, err error) error {
	if err != nil {
		logging.With(ctx, a.log).Error().Err(err).Str("route", route).Msg("handler failed")
		if errors.Is(err, context.Canceled) {
			return err
		}
		reply = a.facade.ErrorReply()
	}
	return a.reply(ctx, chatID, reply)
}

func (a *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, reply *application.Reply) error {
	if err := a.sender.SendReply(ctx, chatID, reply); err != nil {
		logging.With(ctx, a.log).Warn().Err(err).Int64("chat_id", chatID).Msg("send reply failed")
		return err
	}
	return nil
}

// allow applies the per-user limit. Limiter errors let the request through.
func (a *RealTelegramBotAdapter) allow(ctx context.Context, key string, limit int) bool {
	if a.rateLimiter == nil {
		return true
	}
	ok, err := a.rateLimiter.Allow(ctx, key, limit, limitWindow)
	if err != nil {
		a.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

func callerFrom(u *tgbotapi.User) application.Caller {
	return application.Caller{
		ID:          u.ID,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		Handle:      u.UserName,
	}
}
