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

// parseCallback splits a "tag:arg1:arg2" payload. Config names never
// contain colons, so a plain split is enough.
func parseCallback(data string) (string, []string) {
	parts := strings.Split(data, ":")
	return parts[0], parts[1:]
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Acknowledge first so the client stops its spinner regardless of
	// how handling goes.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Debug("failed to answer callback", "error", err)
	}
	if query.Message == nil {
		return
	}

	tag, args := parseCallback(query.Data)
	switch tag {
	case "serv_menu":
		b.cbMenu(ctx, query)
	case "serv_new":
		b.cbNewConfig(ctx, query)
	case "serv_choose":
		b.cbChoose(ctx, query, args)
	case "serv_link":
		b.cbLink(ctx, query, args)
	case "serv_renew":
		b.cbRenew(ctx, query, args)
	case "serv_paid":
		b.cbPaid(ctx, query, args)
	case "serv_cancel":
		b.cbCancel(ctx, query, args)
	case "serv_del":
		b.cbDelete(ctx, query, args)
	case "adm_acc_accept", "adm_acc_decline":
		b.cbAccessDecision(ctx, query, tag == "adm_acc_accept", args)
	case "adm_pay_confirm", "adm_pay_reject":
		b.cbPaymentDecision(ctx, query, tag == "adm_pay_confirm", args)
	default:
		b.logger.Warn("unknown callback tag", "tag", tag)
	}
}

func (b *Bot) cbMenu(ctx context.Context, query *tgbotapi.CallbackQuery) {
	configs, err := b.provision.Configs(ctx, query.From.ID)
	if err != nil {
		token := b.logger.ErrorToken("failed to list configs", err)
		b.edit(query, "Something went wrong, try again later."+token)
		return
	}
	b.edit(query, menuText(configs), menuButtons(configs)...)
}

func (b *Bot) cbNewConfig(ctx context.Context, query *tgbotapi.CallbackQuery) {
	granted, err := b.access.Granted(ctx, query.From.ID, model.AccessBot)
	if err != nil || !granted {
		b.edit(query, "You have no active access. Send /join to request it.")
		return
	}

	cfg, err := b.provision.EnsureConfig(ctx, query.From.ID)
	if err != nil {
		token := b.logger.ErrorToken("failed to provision config", err)
		b.edit(query, "Could not create a config, try again later."+token)
		return
	}
	b.edit(query, configText(cfg, time.Now()), configButtons(cfg)...)
}

func (b *Bot) cbChoose(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) {
	if len(args) != 1 {
		return
	}
	cfg, err := b.provision.Config(ctx, query.From.ID, args[0])
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			b.edit(query, "That config no longer exists.")
			return
		}
		token := b.logger.ErrorToken("failed to get config", err)
		b.edit(query, "Something went wrong, try again later."+token)
		return
	}
	b.edit(query, configText(cfg, time.Now()), configButtons(cfg)...)
}

func (b *Bot) cbLink(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) {
	if len(args) != 1 {
		return
	}
	link, err := b.provision.ConnectionLink(ctx, query.From.ID, args[0])
	if err != nil {
		token := b.logger.ErrorToken("failed to build connection link", err)
		b.edit(query, "Could not fetch the link, try again later."+token)
		return
	}
	b.reply(ctx, query.Message.Chat.ID, fmt.Sprintf("<code>%s</code>", link))
}

func (b *Bot) cbRenew(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) {
	if len(args) != 1 {
		return
	}
	configName := args[0]

	code, err := b.orders.Open(ctx, query.From.ID, configName, b.grants.ExtensionDays)
	switch {
	case err != nil:
		token := b.logger.ErrorToken("failed to open order", err)
		b.edit(query, "Something went wrong, try again later."+token)
		return
	case code == model.CodeUniqueViolation:
		// A NEW or PAYED order already sits on this config; resume it.
	case code != model.CodeSuccess:
		b.edit(query, "Could not open an order: "+code.String())
		return
	}

	cfg, err := b.provision.Config(ctx, query.From.ID, configName)
	if err != nil {
		token := b.logger.ErrorToken("failed to get config", err)
		b.edit(query, "Something went wrong, try again later."+token)
		return
	}
	b.edit(query, paymentText(cfg, b.grants.ExtensionDays), paymentButtons(configName)...)
}

func (b *Bot) cbPaid(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) {
	if len(args) != 1 {
		return
	}
	configName := args[0]

	code, err := b.orders.MarkPaid(ctx, query.From.ID, configName)
	switch {
	case err != nil:
		token := b.logger.ErrorToken("failed to mark order paid", err)
		b.edit(query, "Something went wrong, try again later."+token)
	case code == model.CodeNotFound:
		b.edit(query, "There is no open order for this config.")
	case code == model.CodeSuccess:
		if user, err := b.access.User(ctx, query.From.ID); err == nil {
			b.notifier.PaymentClaimed(ctx, user, configName)
		}
		b.edit(query, "Thanks. An admin will confirm your payment shortly.")
	default:
		b.edit(query, "Could not record the payment: "+code.String())
	}
}

func (b *Bot) cbCancel(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) {
	if len(args) != 1 {
		return
	}

	code, err := b.orders.Delete(ctx, query.From.ID, args[0], model.OrderNew)
	switch {
	case err != nil:
		token := b.logger.ErrorToken("failed to cancel order", err)
		b.edit(query, "Something went wrong, try again later."+token)
	case code == model.CodeNotFound:
		b.edit(query, "There is no open order to cancel.")
	default:
		b.edit(query, "Order cancelled.")
	}
}

func (b *Bot) cbDelete(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) {
	if len(args) != 1 {
		return
	}

	if err := b.provision.DeleteConfig(ctx, query.From.ID, args[0]); err != nil {
		token := b.logger.ErrorToken("failed to delete config", err)
		b.edit(query, "Could not delete the config, try again later."+token)
		return
	}
	b.cbMenu(ctx, query)
}

// cbAccessDecision handles admin approval or decline of an access
// request. Approval grants bot access and provisions the first config
// right away.
func (b *Bot) cbAccessDecision(ctx context.Context, query *tgbotapi.CallbackQuery, approve bool, args []string) {
	if !b.isAdmin(ctx, query.From.ID) {
		return
	}
	if len(args) != 1 {
		return
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.logger.Warn("malformed callback target", "data", query.Data)
		return
	}

	if !approve {
		code, err := b.access.Decline(ctx, target, model.AccessBot)
		switch {
		case err != nil:
			token := b.logger.ErrorToken("failed to decline request", err)
			b.edit(query, "Something went wrong, try again later."+token)
		case code == model.CodeNotFound:
			b.edit(query, "The request was already handled.")
		default:
			b.edit(query, fmt.Sprintf("Declined access for %d.", target))
		}
		return
	}

	code, err := b.access.Accept(ctx, target, model.AccessBot, b.grants.BotAccessDays)
	switch {
	case err != nil:
		token := b.logger.ErrorToken("failed to accept request", err)
		b.edit(query, "Something went wrong, try again later."+token)
		return
	case code == model.CodeNotFound:
		b.edit(query, "The request was already handled.")
		return
	case code != model.CodeSuccess:
		b.edit(query, "Could not grant access: "+code.String())
		return
	}

	if _, err := b.provision.EnsureConfig(ctx, target); err != nil {
		// The grant stands; the user can retry provisioning from the
		// menu.
		b.logger.Error("failed to provision config after grant", "telegram_id", target, "error", err)
	}
	b.notifier.AccessGranted(ctx, target, b.grants.BotAccessDays)
	b.edit(query, fmt.Sprintf("Approved access for %d.", target))
}

// cbPaymentDecision closes or reverts a paid order.
func (b *Bot) cbPaymentDecision(ctx context.Context, query *tgbotapi.CallbackQuery, confirm bool, args []string) {
	if !b.isAdmin(ctx, query.From.ID) {
		return
	}
	if len(args) != 2 {
		return
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.logger.Warn("malformed callback target", "data", query.Data)
		return
	}
	configName := args[1]

	if !confirm {
		code, err := b.orders.Revert(ctx, target, configName)
		switch {
		case err != nil:
			token := b.logger.ErrorToken("failed to revert order", err)
			b.edit(query, "Something went wrong, try again later."+token)
		case code == model.CodeNotFound:
			b.edit(query, "No paid order found; it may have been handled already.")
		default:
			b.reply(ctx, target, fmt.Sprintf("Your payment for %s was not confirmed. Check the transfer and claim it again.", configName))
			b.edit(query, fmt.Sprintf("Rejected payment of %d for %s.", target, configName))
		}
		return
	}

	days, code, err := b.orders.Close(ctx, target, configName)
	switch {
	case err != nil:
		token := b.logger.ErrorToken("failed to close order", err)
		b.edit(query, "Something went wrong, try again later."+token)
	case code == model.CodeNotFound:
		b.edit(query, "No paid order found; it may have been handled already.")
	case code == model.CodeSuccess:
		b.reply(ctx, target, fmt.Sprintf("Payment confirmed, %s is extended by %d days.", configName, days))
		b.edit(query, fmt.Sprintf("Confirmed payment of %d for %s.", target, configName))
	default:
		b.edit(query, "Could not close the order: "+code.String())
	}
}
