// Package notify broadcasts events that need administrator attention.
// Delivery is at-least-once: a duplicate notification is an acceptable
// cost, and no state is kept here.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/model"
)

type Notifier struct {
	sender     model.Sender
	userStore  model.UserStore
	superAdmin int64
	logger     *logger.Logger
}

func New(sender model.Sender, userStore model.UserStore, superAdmin int64, logger *logger.Logger) *Notifier {
	return &Notifier{
		sender:     sender,
		userStore:  userStore,
		superAdmin: superAdmin,
		logger:     logger,
	}
}

// admins resolves the recipient set: the configured super-admin unioned
// with every user flagged admin, deduplicated.
func (n *Notifier) admins(ctx context.Context) []int64 {
	ids := []int64{n.superAdmin}
	flagged, err := n.userStore.AdminIDs(ctx)
	if err != nil {
		// The super-admin still gets notified.
		n.logger.Error("failed to resolve admin set", "error", err)
	}
	seen := map[int64]bool{n.superAdmin: true}
	for _, id := range flagged {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// broadcast sends one message per admin. Per-recipient failures are
// logged and skipped so one unreachable admin does not starve the rest.
func (n *Notifier) broadcast(ctx context.Context, text string, buttons ...model.Button) {
	for _, id := range n.admins(ctx) {
		if err := n.sender.Send(ctx, id, text, buttons...); err != nil {
			n.logger.Error("failed to notify admin", "admin_id", id, "error", err)
		}
	}
}

// AccessRequested announces a new or renewed access request.
func (n *Notifier) AccessRequested(ctx context.Context, user model.User, accessName string, prevValidTo *time.Time) {
	text := fmt.Sprintf("ATTENTION: access request\n@%s (%d) asked for %q access",
		user.Tag, user.TelegramID, accessName)
	if prevValidTo != nil {
		text = fmt.Sprintf("ATTENTION: access renewal\n@%s (%d) asked to renew %q access (expired %s)",
			user.Tag, user.TelegramID, accessName, prevValidTo.Format(time.DateTime))
	}
	n.broadcast(ctx, text,
		model.Button{Label: "Approve", Data: fmt.Sprintf("adm_acc_accept:%d", user.TelegramID)},
		model.Button{Label: "Decline", Data: fmt.Sprintf("adm_acc_decline:%d", user.TelegramID)},
	)
}

// PaymentClaimed announces that a user marked an order as paid.
func (n *Notifier) PaymentClaimed(ctx context.Context, user model.User, configName string) {
	text := fmt.Sprintf("ATTENTION: payment claim\n@%s (%d) reported payment for config %s",
		user.Tag, user.TelegramID, configName)
	n.broadcast(ctx, text,
		model.Button{Label: "Confirm payment", Data: fmt.Sprintf("adm_pay_confirm:%d:%s", user.TelegramID, configName)},
		model.Button{Label: "Reject payment", Data: fmt.Sprintf("adm_pay_reject:%d:%s", user.TelegramID, configName)},
	)
}

// AccessGranted tells the user their subscription was approved.
func (n *Notifier) AccessGranted(ctx context.Context, telegramID int64, days int) {
	text := fmt.Sprintf("Your bot subscription was approved for %d days.\nUse /menu to see what you can do.", days)
	if err := n.sender.Send(ctx, telegramID, text); err != nil {
		n.logger.Error("failed to notify user", "telegram_id", telegramID, "error", err)
	}
}

// ConfigExpiring reminds the user that a configuration ends soon.
func (n *Notifier) ConfigExpiring(ctx context.Context, cfg model.ExpiringConfig, now time.Time) {
	left := cfg.ValidTo.Sub(now)
	var leftText string
	if days := int(left.Hours() / 24); days > 0 {
		leftText = fmt.Sprintf("%dd", days)
	} else {
		leftText = fmt.Sprintf("%dh", int(left.Hours()))
	}
	text := fmt.Sprintf("Hi! Your subscription for config %s ends in %s (%s)",
		cfg.ConfigName, leftText, cfg.ValidTo.Format(time.DateTime))
	if err := n.sender.Send(ctx, cfg.TelegramID, text); err != nil {
		n.logger.Error("failed to send expiry reminder", "telegram_id", cfg.TelegramID, "error", err)
	}
}
