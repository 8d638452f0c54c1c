package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the explicit order state. Transitions not listed in the
// table are rejected before any row is touched.
type OrderStatus string

const (
	OrderNew    OrderStatus = "NEW"
	OrderPaid   OrderStatus = "PAYED"
	OrderClosed OrderStatus = "CLOSED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderNew:    {OrderPaid},
	OrderPaid:   {OrderNew, OrderClosed},
	OrderClosed: {},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransition reports whether s -> to is a legal transition.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderStore defines persistence operations for orders. Open enforces
// at-most-one NEW-or-PAYED order per configuration with a pre-check,
// since status is mutable and a constraint cannot express it. Close
// transitions PAYED->CLOSED and extends the configuration from the order
// snapshot in one transaction; a half-applied close is never observable.
type OrderStore interface {
	Open(ctx context.Context, cfg ServiceConfig, extensionDays int) (Code, error)
	Get(ctx context.Context, userID, configID uuid.UUID, status OrderStatus) (Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListPaid(ctx context.Context, limit int) ([]PaidOrder, error)
	UpdateStatus(ctx context.Context, userID, configID uuid.UUID, from, to OrderStatus) (Code, error)
	Close(ctx context.Context, userID, configID uuid.UUID) (Code, error)
	Delete(ctx context.Context, userID, configID uuid.UUID, status OrderStatus) (Code, error)
}

// OrderSnapshot captures the configuration's terms at order creation so
// later edits do not retroactively change an in-flight order.
type OrderSnapshot struct {
	ConfigName    string  `json:"config_name"`
	Price         float64 `json:"config_price"`
	MaxTraffic    float64 `json:"max_config_traffic"`
	ExtensionDays int     `json:"expired_delta_days"`
}

// Order represents a purchase workflow tied to one configuration.
type Order struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ConfigID  uuid.UUID
	Status    OrderStatus
	Snapshot  OrderSnapshot
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaidOrder is a paid order joined with its owner, for the admin
// payment queue.
type PaidOrder struct {
	TelegramID int64
	Status     OrderStatus
	Snapshot   OrderSnapshot
	UpdatedAt  time.Time
}
