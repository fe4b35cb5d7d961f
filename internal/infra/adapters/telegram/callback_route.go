package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"telegram-link-gateway/internal/application"
	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/infra/metrics"
	"telegram-link-gateway/internal/usecase"
)

type cbHandler func(ctx context.Context, c application.Caller, data string) (*application.Reply, error)

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

func (a *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		application.CallbackReferralNew: func(ctx context.Context, c application.Caller, _ string) (*application.Reply, error) {
			return a.facade.HandleRefer(ctx, c)
		},
		usecase.CallbackActivatePremium: func(ctx context.Context, c application.Caller, _ string) (*application.Reply, error) {
			return a.facade.HandleActivatePremium(ctx, c)
		},
	}
}

// cbPrefixRoutes handle callbacks carrying an argument. Fn receives the data after the prefix.
func (a *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: application.CallbackListPrefix, Fn: func(ctx context.Context, c application.Caller, rest string) (*application.Reply, error) {
			if err := a.facade.Authorize(ctx, c); err != nil {
				if errors.Is(err, domain.ErrNotAuthorized) {
					metrics.IncAdminCommand("/list", "unauthorized")
					return a.facade.NotAuthorizedReply(), nil
				}
				return nil, err
			}
			metrics.IncAdminCommand("/list", "authorized")
			return a.facade.HandleList(ctx, parsePage(rest))
		}},
	}
}

// parsePage reads a zero-based page index; anything unparsable is the first page.
func parsePage(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
