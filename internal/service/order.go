package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/model"
)

// Order manages the NEW -> PAYED -> CLOSED purchase workflow and its
// coupling to the remote provisioning system on close.
type Order struct {
	orderStore  model.OrderStore
	configStore model.ServiceConfigStore
	userStore   model.UserStore
	provision   *Provision
	logger      *logger.Logger
	now         func() time.Time
}

func NewOrder(
	orderStore model.OrderStore,
	configStore model.ServiceConfigStore,
	userStore model.UserStore,
	provision *Provision,
	logger *logger.Logger,
) *Order {
	return &Order{
		orderStore:  orderStore,
		configStore: configStore,
		userStore:   userStore,
		provision:   provision,
		logger:      logger,
		now:         time.Now,
	}
}

// Open creates a NEW order snapshotting the configuration's current
// terms. At most one NEW-or-PAYED order may exist per configuration;
// a second open reports a unique violation without mutating anything.
func (s *Order) Open(ctx context.Context, telegramID int64, configName string, extensionDays int) (model.Code, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to resolve user: %w", err)
	}
	cfg, err := s.configStore.Get(ctx, user.ID, configName)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to get config: %w", err)
	}

	code, err := s.orderStore.Open(ctx, cfg, extensionDays)
	if err != nil {
		s.logger.Error("failed to open order",
			"telegram_id", telegramID,
			"config_name", configName,
			"error", err)
	}
	return code, err
}

// MarkPaid records the user's payment claim: NEW -> PAYED. Zero rows
// matched means there was no NEW order to pay.
func (s *Order) MarkPaid(ctx context.Context, telegramID int64, configName string) (model.Code, error) {
	return s.transition(ctx, telegramID, configName, model.OrderNew, model.OrderPaid)
}

// Revert undoes a rejected payment claim: PAYED -> NEW. The user may
// then re-attempt payment on the same order.
func (s *Order) Revert(ctx context.Context, telegramID int64, configName string) (model.Code, error) {
	return s.transition(ctx, telegramID, configName, model.OrderPaid, model.OrderNew)
}

func (s *Order) transition(ctx context.Context, telegramID int64, configName string, from, to model.OrderStatus) (model.Code, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to resolve user: %w", err)
	}
	cfg, err := s.configStore.Get(ctx, user.ID, configName)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to get config: %w", err)
	}

	code, err := s.orderStore.UpdateStatus(ctx, user.ID, cfg.ID, from, to)
	if err != nil {
		s.logger.Error("failed to update order status",
			"telegram_id", telegramID,
			"config_name", configName,
			"from", from,
			"to", to,
			"error", err)
	}
	return code, err
}

// Close confirms the payment: the remote expiry is pushed to the panel
// first, and only on remote success does the local transaction close the
// order and extend the configuration from the order snapshot. A remote
// failure aborts the close with the order still PAYED — locally closed
// but remotely expiring is the one state this ordering rules out.
// Terms are applied from the snapshot, not the live row: price changes
// made mid-order do not affect an in-flight order. The returned day
// count is the snapshot's, so callers report what was actually applied.
func (s *Order) Close(ctx context.Context, telegramID int64, configName string) (int, model.Code, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, model.CodeNotFound, fmt.Errorf("failed to resolve user: %w", err)
	}
	cfg, err := s.configStore.Get(ctx, user.ID, configName)
	if err != nil {
		return 0, model.CodeNotFound, fmt.Errorf("failed to get config: %w", err)
	}

	order, err := s.orderStore.Get(ctx, user.ID, cfg.ID, model.OrderPaid)
	if err != nil {
		return 0, model.CodeNotFound, fmt.Errorf("failed to get paid order: %w", err)
	}

	days := order.Snapshot.ExtensionDays
	until := s.now().AddDate(0, 0, days)
	if err := s.provision.ExtendRemote(ctx, configName, until); err != nil {
		s.logger.Error("remote extension failed, aborting close",
			"telegram_id", telegramID,
			"config_name", configName,
			"error", err)
		return 0, model.CodeDatabaseError, err
	}

	code, err := s.orderStore.Close(ctx, user.ID, cfg.ID)
	if err != nil {
		s.logger.Error("failed to close order",
			"telegram_id", telegramID,
			"config_name", configName,
			"error", err)
	}
	return days, code, err
}

// ByStatus returns the user's order for the configuration in the given
// status, if any.
func (s *Order) ByStatus(ctx context.Context, telegramID int64, configName string, status model.OrderStatus) (model.Order, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to resolve user: %w", err)
	}
	cfg, err := s.configStore.Get(ctx, user.ID, configName)
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to get config: %w", err)
	}

	return s.orderStore.Get(ctx, user.ID, cfg.ID, status)
}

// Orders lists all of the user's orders.
func (s *Order) Orders(ctx context.Context, telegramID int64) ([]model.Order, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.orderStore.ListByUser(ctx, user.ID)
}

// PaidOrders lists payment claims awaiting admin confirmation.
func (s *Order) PaidOrders(ctx context.Context, limit int) ([]model.PaidOrder, error) {
	return s.orderStore.ListPaid(ctx, limit)
}

// Delete removes the order in the given status, for admin cleanup.
func (s *Order) Delete(ctx context.Context, telegramID int64, configName string, status model.OrderStatus) (model.Code, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to resolve user: %w", err)
	}
	cfg, err := s.configStore.Get(ctx, user.ID, configName)
	if err != nil {
		return model.CodeNotFound, fmt.Errorf("failed to get config: %w", err)
	}

	return s.orderStore.Delete(ctx, user.ID, cfg.ID, status)
}
