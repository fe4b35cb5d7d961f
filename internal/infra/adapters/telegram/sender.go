package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-link-gateway/internal/application"
	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/adapter"
)

// botAPI is the subset of *tgbotapi.BotAPI the adapter calls.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ adapter.Messenger = (*Sender)(nil)

// Sender is the outbound side of the bot. Errors are reported as *adapter.DeliveryError.
type Sender struct {
	bot botAPI
	log *zerolog.Logger
}

func NewSender(bot *tgbotapi.BotAPI, logger *zerolog.Logger) *Sender {
	return &Sender{bot: bot, log: logger}
}

func (s *Sender) SendMessage(ctx context.Context, chatID int64, text string) error {
	return s.SendButtons(ctx, chatID, text, nil)
}

// SendButtons sends text with an inline keyboard.
// A button with URL opens a link; otherwise Data is sent back as callback data.
func (s *Sender) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if kb := inlineKeyboard(rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := s.bot.Send(msg)
	return classify(err)
}

// SendReply renders a facade reply. A failed photo falls back to plain text.
func (s *Sender) SendReply(ctx context.Context, chatID int64, r *application.Reply) error {
	if r == nil {
		return nil
	}
	if r.Photo != "" {
		p := tgbotapi.NewPhoto(chatID, fileRef(r.Photo))
		p.Caption = r.Text
		if kb := inlineKeyboard(r.Buttons); kb != nil {
			p.ReplyMarkup = *kb
		}
		_, err := s.bot.Send(p)
		if err == nil {
			return nil
		}
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("photo reply failed, sending text")
	}
	return s.SendButtons(ctx, chatID, r.Text, r.Buttons)
}

// Deliver sends a broadcast message keeping its content type.
func (s *Sender) Deliver(ctx context.Context, chatID int64, msg model.BroadcastMessage) error {
	select {
	case <-ctx.Done():
		return &adapter.DeliveryError{Kind: adapter.FailureOther, Err: ctx.Err()}
	default:
	}

	var c tgbotapi.Chattable
	switch msg.Kind {
	case model.ContentText:
		c = tgbotapi.NewMessage(chatID, msg.Text)
	case model.ContentPhoto:
		p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(msg.MediaRef))
		p.Caption = msg.Caption
		c = p
	case model.ContentVideo:
		v := tgbotapi.NewVideo(chatID, tgbotapi.FileID(msg.MediaRef))
		v.Caption = msg.Caption
		c = v
	default:
		return &adapter.DeliveryError{Kind: adapter.FailureOther, Err: domain.ErrInvalidArgument}
	}
	_, err := s.bot.Send(c)
	return classify(err)
}

// classify maps Telegram API errors onto adapter.DeliveryError. 403 means the
// recipient blocked the bot or deactivated their account.
func classify(err error) error {
	if err == nil {
		return nil
	}
	code := 0
	var te *tgbotapi.Error
	if errors.As(err, &te) {
		code = te.Code
	}
	kind := adapter.FailureOther
	if code == http.StatusForbidden {
		kind = adapter.FailureBlocked
	}
	return &adapter.DeliveryError{Kind: kind, Code: code, Err: err}
}

func inlineKeyboard(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	if len(kbRows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &kb
}

// fileRef treats http(s) references as URLs and everything else as a Telegram file id.
func fileRef(ref string) tgbotapi.RequestFileData {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tgbotapi.FileURL(ref)
	}
	return tgbotapi.FileID(ref)
}

func (s *Sender) answerCallback(id string) {
	if _, err := s.bot.Request(tgbotapi.NewCallback(id, "")); err != nil {
		s.log.Debug().Err(err).Msg("answer callback failed")
	}
}
