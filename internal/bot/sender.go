package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/model"
)

// Sender is the send-only telegram surface for processes that push
// messages without consuming updates, such as the reminder job.
type Sender struct {
	api    *tgbotapi.BotAPI
	logger *logger.Logger
}

func NewSender(api *tgbotapi.BotAPI, logger *logger.Logger) *Sender {
	return &Sender{api: api, logger: logger}
}

var _ model.Sender = (*Sender)(nil)

func (s *Sender) Send(ctx context.Context, recipientID int64, text string, buttons ...model.Button) error {
	msg := tgbotapi.NewMessage(recipientID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = inlineKeyboard(buttons)
	}
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", recipientID, err)
	}
	return nil
}
