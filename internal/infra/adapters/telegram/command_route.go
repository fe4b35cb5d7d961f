package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-link-gateway/internal/application"
	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, msg *tgbotapi.Message) (*application.Reply, error)

func (a *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start": func(ctx context.Context, m *tgbotapi.Message) (*application.Reply, error) {
			return a.facade.HandleStart(ctx, callerFrom(m.From), strings.TrimSpace(m.CommandArguments()))
		},
		"help": func(ctx context.Context, _ *tgbotapi.Message) (*application.Reply, error) {
			return a.facade.HandleHelp(ctx)
		},
		"balance": func(ctx context.Context, m *tgbotapi.Message) (*application.Reply, error) {
			return a.facade.HandleBalance(ctx, callerFrom(m.From))
		},
		"refer": func(ctx context.Context, m *tgbotapi.Message) (*application.Reply, error) {
			return a.facade.HandleRefer(ctx, callerFrom(m.From))
		},

		"users": a.adminOnly("users", func(ctx context.Context, _ *tgbotapi.Message) (*application.Reply, error) {
			return a.facade.HandleUsers(ctx)
		}),
		"stats": a.adminOnly("stats", func(ctx context.Context, _ *tgbotapi.Message) (*application.Reply, error) {
			return a.facade.HandleStats(ctx)
		}),
		"list": a.adminOnly("list", func(ctx context.Context, m *tgbotapi.Message) (*application.Reply, error) {
			return a.facade.HandleList(ctx, parsePage(m.CommandArguments()))
		}),
		"broadcast": a.adminOnly("broadcast", func(ctx context.Context, m *tgbotapi.Message) (*application.Reply, error) {
			return a.facade.HandleBroadcast(ctx, broadcastFromReply(m))
		}),
		"activate": a.adminOnly("activate", func(ctx context.Context, m *tgbotapi.Message) (*application.Reply, error) {
			return a.facade.HandleActivate(ctx, m.CommandArguments())
		}),
	}
}

// adminOnly lets the handler run only for administrators and answers everybody else with the refusal text.
func (a *RealTelegramBotAdapter) adminOnly(cmd string, next commandHandler) commandHandler {
	return func(ctx context.Context, m *tgbotapi.Message) (*application.Reply, error) {
		if err := a.facade.Authorize(ctx, callerFrom(m.From)); err != nil {
			if errors.Is(err, domain.ErrNotAuthorized) {
				metrics.IncAdminCommand("/"+cmd, "unauthorized")
				return a.facade.NotAuthorizedReply(), nil
			}
			return nil, err
		}
		metrics.IncAdminCommand("/"+cmd, "authorized")
		return next(ctx, m)
	}
}

// broadcastFromReply extracts the message an admin replied to with /broadcast.
// It returns nil without a reply and a message with an empty Kind for unsupported content.
func broadcastFromReply(m *tgbotapi.Message) *model.BroadcastMessage {
	src := m.ReplyToMessage
	if src == nil {
		return nil
	}
	switch {
	case len(src.Photo) > 0:
		// sizes are ordered smallest first
		return &model.BroadcastMessage{
			Kind:     model.ContentPhoto,
			MediaRef: src.Photo[len(src.Photo)-1].FileID,
			Caption:  src.Caption,
		}
	case src.Video != nil:
		return &model.BroadcastMessage{
			Kind:     model.ContentVideo,
			MediaRef: src.Video.FileID,
			Caption:  src.Caption,
		}
	case strings.TrimSpace(src.Text) != "":
		return &model.BroadcastMessage{Kind: model.ContentText, Text: src.Text}
	}
	return &model.BroadcastMessage{}
}
