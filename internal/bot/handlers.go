package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wiregram/wiregram-server/internal/model"
)

const helpText = `/start — register with the bot
/join — request access
/menu — your configs
/help — this message`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.cmdStart(ctx, msg)
	case "join":
		b.cmdJoin(ctx, msg)
	case "menu":
		b.cmdMenu(ctx, msg)
	case "help":
		b.reply(ctx, msg.Chat.ID, helpText)
	case "promote":
		b.cmdSetAdmin(ctx, msg, true)
	case "demote":
		b.cmdSetAdmin(ctx, msg, false)
	case "requests":
		b.cmdRequests(ctx, msg)
	case "paid":
		b.cmdPaid(ctx, msg)
	default:
		b.reply(ctx, msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	user, err := b.access.EnsureUser(ctx, model.User{
		TelegramID: from.ID,
		Name:       from.FirstName,
		Tag:        from.UserName,
		LangCode:   from.LanguageCode,
	})
	if err != nil {
		token := b.logger.ErrorToken("failed to register user", err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, try again later."+token)
		return
	}

	granted, err := b.access.Granted(ctx, user.TelegramID, model.AccessBot)
	if err != nil {
		b.logger.Error("failed to check access", "telegram_id", user.TelegramID, "error", err)
	}
	if granted {
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf("Welcome back, %s. Open /menu to manage your configs.", user.Name))
		return
	}
	b.reply(ctx, msg.Chat.ID, fmt.Sprintf("Hi, %s. Send /join to request access.", user.Name))
}

func (b *Bot) cmdJoin(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.access.User(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			b.reply(ctx, msg.Chat.ID, "You are not registered yet. Send /start first.")
			return
		}
		token := b.logger.ErrorToken("failed to resolve user", err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, try again later."+token)
		return
	}

	// A renewal request carries the current expiry so admins can tell it
	// apart from a first-time one.
	var prevValidTo *time.Time
	if acc, err := b.access.Get(ctx, user.TelegramID, model.AccessBot); err == nil {
		prevValidTo = &acc.ValidTo
	}

	code, err := b.access.Request(ctx, user.TelegramID, model.AccessBot)
	switch {
	case err != nil:
		token := b.logger.ErrorToken("failed to create access request", err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, try again later."+token)
	case code == model.CodeUniqueViolation:
		b.reply(ctx, msg.Chat.ID, "Your request is already pending, hold on.")
	case code == model.CodeSuccess:
		b.notifier.AccessRequested(ctx, user, model.AccessBot, prevValidTo)
		b.reply(ctx, msg.Chat.ID, "Request sent. You will be notified once it is reviewed.")
	default:
		b.reply(ctx, msg.Chat.ID, "Could not file the request: "+code.String())
	}
}

func (b *Bot) cmdMenu(ctx context.Context, msg *tgbotapi.Message) {
	granted, err := b.access.Granted(ctx, msg.From.ID, model.AccessBot)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			b.reply(ctx, msg.Chat.ID, "You are not registered yet. Send /start first.")
			return
		}
		token := b.logger.ErrorToken("failed to check access", err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, try again later."+token)
		return
	}
	if !granted {
		b.reply(ctx, msg.Chat.ID, "You have no active access. Send /join to request it.")
		return
	}

	configs, err := b.provision.Configs(ctx, msg.From.ID)
	if err != nil {
		token := b.logger.ErrorToken("failed to list configs", err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, try again later."+token)
		return
	}

	b.reply(ctx, msg.Chat.ID, menuText(configs), menuButtons(configs)...)
}

// cmdSetAdmin flips the admin flag. Only the configured super-admin may
// use it.
func (b *Bot) cmdSetAdmin(ctx context.Context, msg *tgbotapi.Message, admin bool) {
	if msg.From.ID != b.superAdmin {
		b.reply(ctx, msg.Chat.ID, "Unknown command. See /help.")
		return
	}

	target, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.reply(ctx, msg.Chat.ID, "Usage: /promote <telegram id>")
		return
	}

	var code model.Code
	if admin {
		code, err = b.access.Promote(ctx, target)
	} else {
		code, err = b.access.Demote(ctx, target)
	}
	switch {
	case err != nil:
		token := b.logger.ErrorToken("failed to update admin flag", err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, try again later."+token)
	case code == model.CodeNotFound:
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf("No user with id %d.", target))
	default:
		b.reply(ctx, msg.Chat.ID, "Done.")
	}
}

// cmdRequests lists pending access requests for admins who missed the
// push notification.
func (b *Bot) cmdRequests(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(ctx, msg.From.ID) {
		b.reply(ctx, msg.Chat.ID, "Unknown command. See /help.")
		return
	}

	pending, err := b.access.PendingRequests(ctx, model.AccessBot, 20)
	if err != nil {
		token := b.logger.ErrorToken("failed to list requests", err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, try again later."+token)
		return
	}
	if len(pending) == 0 {
		b.reply(ctx, msg.Chat.ID, "No pending requests.")
		return
	}

	for _, req := range pending {
		b.reply(ctx, msg.Chat.ID,
			fmt.Sprintf("@%s (id %d) requested access on %s.",
				req.Tag, req.TelegramID, req.CreatedAt.Format("2006-01-02 15:04")),
			model.Button{Label: "Approve", Data: fmt.Sprintf("adm_acc_accept:%d", req.TelegramID)},
			model.Button{Label: "Decline", Data: fmt.Sprintf("adm_acc_decline:%d", req.TelegramID)},
		)
	}
}

// cmdPaid lists orders awaiting close, with confirm/reject buttons.
func (b *Bot) cmdPaid(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(ctx, msg.From.ID) {
		b.reply(ctx, msg.Chat.ID, "Unknown command. See /help.")
		return
	}

	orders, err := b.orders.PaidOrders(ctx, 20)
	if err != nil {
		token := b.logger.ErrorToken("failed to list paid orders", err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, try again later."+token)
		return
	}
	if len(orders) == 0 {
		b.reply(ctx, msg.Chat.ID, "No paid orders.")
		return
	}

	for _, ord := range orders {
		b.reply(ctx, msg.Chat.ID,
			fmt.Sprintf("User %d claims payment of %.0f for %s.",
				ord.TelegramID, ord.Snapshot.Price, ord.Snapshot.ConfigName),
			model.Button{Label: "Confirm payment", Data: fmt.Sprintf("adm_pay_confirm:%d:%s", ord.TelegramID, ord.Snapshot.ConfigName)},
			model.Button{Label: "Reject payment", Data: fmt.Sprintf("adm_pay_reject:%d:%s", ord.TelegramID, ord.Snapshot.ConfigName)},
		)
	}
}

func (b *Bot) isAdmin(ctx context.Context, telegramID int64) bool {
	if telegramID == b.superAdmin {
		return true
	}
	user, err := b.access.User(ctx, telegramID)
	if err != nil {
		return false
	}
	return user.Admin
}
