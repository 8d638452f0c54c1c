package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wiregram/wiregram-server/internal/model"
)

var _ model.OrderStore = (*OrderRepository)(nil)

// errHalfApplied aborts the close transaction when either conditional
// update matched nothing, so a close is all-or-nothing.
var errHalfApplied = errors.New("close matched no rows")

type OrderRepository struct {
	db *Connection
}

func NewOrderRepository(db *Connection) *OrderRepository {
	return &OrderRepository{
		db: db,
	}
}

// Open inserts a NEW order after checking no NEW or PAYED order exists
// for the configuration. The check is a read, not a constraint, because
// status is mutable; the surrounding transaction serializes concurrent
// opens for the same configuration.
func (r *OrderRepository) Open(ctx context.Context, cfg model.ServiceConfig, extensionDays int) (model.Code, error) {
	code := model.CodeSuccess
	err := r.db.RunInTx(ctx, func(tx pgx.Tx) error {
		var existing uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM orders
				  WHERE user_id = $1 AND service_config_id = $2 AND order_status IN ($3, $4)`,
			cfg.UserID, cfg.ID, model.OrderNew, model.OrderPaid).Scan(&existing)
		if err == nil {
			code = model.CodeUniqueViolation
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		now := time.Now()
		snapshot := model.OrderSnapshot{
			ConfigName:    cfg.Name,
			Price:         cfg.Price,
			MaxTraffic:    cfg.MaxTraffic,
			ExtensionDays: extensionDays,
		}
		ins, err := tx.Exec(ctx, `INSERT INTO orders (id, user_id, service_config_id, order_status, order_data, created_at, updated_at)
				  VALUES ($1, $2, $3, $4, $5, $6, $6)`,
			model.DeriveOrderID(cfg.UserID, cfg.ID, now), cfg.UserID, cfg.ID, model.OrderNew, snapshot, now)
		if err != nil {
			return err
		}
		code = insCode(ins.RowsAffected())
		return nil
	})
	if err != nil {
		return classify(err)
	}

	return code, nil
}

func (r *OrderRepository) Get(ctx context.Context, userID, configID uuid.UUID, status model.OrderStatus) (model.Order, error) {
	var order model.Order
	query := `SELECT id, user_id, service_config_id, order_status, order_data, created_at, updated_at
			  FROM orders
			  WHERE user_id = $1 AND service_config_id = $2 AND order_status = $3`

	err := r.db.QueryRow(ctx, query, userID, configID, status).Scan(
		&order.ID, &order.UserID, &order.ConfigID, &order.Status, &order.Snapshot,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, model.ErrNotFound
		}
		return model.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	query := `SELECT id, user_id, service_config_id, order_status, order_data, created_at, updated_at
			  FROM orders WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var order model.Order
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.ConfigID, &order.Status, &order.Snapshot,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	return orders, nil
}

func (r *OrderRepository) ListPaid(ctx context.Context, limit int) ([]model.PaidOrder, error) {
	query := `SELECT u.telegram_id, o.order_status, o.order_data, o.updated_at
			  FROM orders o
			  JOIN users u ON u.id = o.user_id
			  WHERE o.order_status = $1
			  ORDER BY u.telegram_id
			  LIMIT $2`

	rows, err := r.db.Query(ctx, query, model.OrderPaid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select paid orders: %w", err)
	}
	defer rows.Close()

	var orders []model.PaidOrder
	for rows.Next() {
		var order model.PaidOrder
		if err := rows.Scan(&order.TelegramID, &order.Status, &order.Snapshot, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan paid order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read paid orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus performs a conditional transition matched on the current
// status; zero rows affected means the order was not in the expected
// state. Illegal transitions are rejected before touching the database.
func (r *OrderRepository) UpdateStatus(ctx context.Context, userID, configID uuid.UUID, from, to model.OrderStatus) (model.Code, error) {
	if !from.CanTransition(to) {
		return model.CodeDatabaseError, fmt.Errorf("illegal order transition %s -> %s", from, to)
	}

	query := `UPDATE orders SET order_status = $4, updated_at = now()
			  WHERE user_id = $1 AND service_config_id = $2 AND order_status = $3`

	cmd, err := r.db.Exec(ctx, query, userID, configID, from, to)
	if err != nil {
		return classify(err)
	}

	return updCode(cmd.RowsAffected()), nil
}

// Close transitions the PAYED order to CLOSED and extends the
// configuration from the order snapshot in the same transaction. If
// either update matches nothing the whole transaction rolls back: an
// order closed without its configuration extended, or the reverse, is
// never observable.
func (r *OrderRepository) Close(ctx context.Context, userID, configID uuid.UUID) (model.Code, error) {
	err := r.db.RunInTx(ctx, func(tx pgx.Tx) error {
		var snapshot model.OrderSnapshot
		err := tx.QueryRow(ctx, `SELECT order_data FROM orders
				  WHERE user_id = $1 AND service_config_id = $2 AND order_status = $3`,
			userID, configID, model.OrderPaid).Scan(&snapshot)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errHalfApplied
			}
			return err
		}

		ord, err := tx.Exec(ctx, `UPDATE orders SET order_status = $4, updated_at = now()
				  WHERE user_id = $1 AND service_config_id = $2 AND order_status = $3`,
			userID, configID, model.OrderPaid, model.OrderClosed)
		if err != nil {
			return err
		}

		cfg, err := tx.Exec(ctx, `UPDATE service_configs
				  SET valid_from = now(), valid_to = now() + make_interval(days => $3),
				      config_price = $4, max_traffic = $5
				  WHERE user_id = $1 AND id = $2`,
			userID, configID, snapshot.ExtensionDays, snapshot.Price, snapshot.MaxTraffic)
		if err != nil {
			return err
		}

		if ord.RowsAffected() == 0 || cfg.RowsAffected() == 0 {
			return errHalfApplied
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errHalfApplied) {
			return model.CodeNotFound, nil
		}
		return classify(err)
	}

	return model.CodeSuccess, nil
}

func (r *OrderRepository) Delete(ctx context.Context, userID, configID uuid.UUID, status model.OrderStatus) (model.Code, error) {
	query := `DELETE FROM orders
			  WHERE user_id = $1 AND service_config_id = $2 AND order_status = $3`

	cmd, err := r.db.Exec(ctx, query, userID, configID, status)
	if err != nil {
		return classify(err)
	}

	return delCode(cmd.RowsAffected()), nil
}
