// Package bot is the telegram surface: command and callback dispatch
// plus rendering. All lifecycle decisions live in the services; this
// layer only translates updates into service calls and results into
// text and keyboards.
package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/model"
	"github.com/wiregram/wiregram-server/internal/notify"
	"github.com/wiregram/wiregram-server/internal/service"
)

// Grants carries the grant terms the handlers apply.
type Grants struct {
	BotAccessDays int
	ExtensionDays int
}

type Bot struct {
	api        *tgbotapi.BotAPI
	send       *Sender
	access     *service.Access
	orders     *service.Order
	provision  *service.Provision
	notifier   *notify.Notifier
	grants     Grants
	superAdmin int64
	logger     *logger.Logger
	startedAt  time.Time
}

func New(
	api *tgbotapi.BotAPI,
	access *service.Access,
	orders *service.Order,
	provision *service.Provision,
	grants Grants,
	superAdmin int64,
	logger *logger.Logger,
) *Bot {
	return &Bot{
		api:        api,
		send:       NewSender(api, logger),
		access:     access,
		orders:     orders,
		provision:  provision,
		grants:     grants,
		superAdmin: superAdmin,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// SetNotifier wires the fan-out after construction; the notifier sends
// through the bot itself.
func (b *Bot) SetNotifier(n *notify.Notifier) {
	b.notifier = n
}

var _ model.Sender = (*Bot)(nil)

// Send implements model.Sender by delegating to the send-only surface.
func (b *Bot) Send(ctx context.Context, recipientID int64, text string, buttons ...model.Button) error {
	return b.send.Send(ctx, recipientID, text, buttons...)
}

// inlineKeyboard renders buttons one per row.
func inlineKeyboard(buttons []model.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Run consumes updates until the context is cancelled. Updates older
// than process start are discarded: they are replays of events handled
// by a previous incarnation.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		// An invariant violation kills handling of this event only,
		// not the process.
		if r := recover(); r != nil {
			b.logger.Error("panic in update handler", "panic", r)
		}
	}()

	switch {
	case update.Message != nil:
		if update.Message.Time().Before(b.startedAt) {
			b.logger.Debug("discarding stale message", "chat_id", update.Message.Chat.ID)
			return
		}
		if update.Message.IsCommand() {
			b.handleCommand(ctx, update.Message)
		}
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// reply sends response text to the chat, logging failures only.
func (b *Bot) reply(ctx context.Context, chatID int64, text string, buttons ...model.Button) {
	if err := b.Send(ctx, chatID, text, buttons...); err != nil {
		b.logger.Error("failed to reply", "chat_id", chatID, "error", err)
	}
}

// edit rewrites the message the callback originated from.
func (b *Bot) edit(query *tgbotapi.CallbackQuery, text string, buttons ...model.Button) {
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		markup := inlineKeyboard(buttons)
		edit.ReplyMarkup = &markup
	}
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("failed to edit message", "chat_id", query.Message.Chat.ID, "error", err)
	}
}
