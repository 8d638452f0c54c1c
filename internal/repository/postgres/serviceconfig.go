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

var _ model.ServiceConfigStore = (*ServiceConfigRepository)(nil)

type ServiceConfigRepository struct {
	db *Connection
}

func NewServiceConfigRepository(db *Connection) *ServiceConfigRepository {
	return &ServiceConfigRepository{
		db: db,
	}
}

func (r *ServiceConfigRepository) Create(ctx context.Context, cfg model.ServiceConfig) (model.Code, error) {
	query := `INSERT INTO service_configs (id, user_id, config_name, config_price, max_traffic, remote_client_id, cached_data, valid_from, valid_to)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	cmd, err := r.db.Exec(ctx, query,
		model.DeriveConfigID(cfg.UserID, cfg.Name), cfg.UserID, cfg.Name, cfg.Price, cfg.MaxTraffic,
		cfg.RemoteClientID, cfg.Cached, cfg.ValidFrom, cfg.ValidTo,
	)
	if err != nil {
		return classify(err)
	}

	return insCode(cmd.RowsAffected()), nil
}

func (r *ServiceConfigRepository) Get(ctx context.Context, userID uuid.UUID, configName string) (model.ServiceConfig, error) {
	var cfg model.ServiceConfig
	query := `SELECT id, user_id, config_name, config_price, max_traffic, remote_client_id, cached_data, valid_from, valid_to
			  FROM service_configs WHERE user_id = $1 AND config_name = $2`

	err := r.db.QueryRow(ctx, query, userID, configName).Scan(
		&cfg.ID, &cfg.UserID, &cfg.Name, &cfg.Price, &cfg.MaxTraffic,
		&cfg.RemoteClientID, &cfg.Cached, &cfg.ValidFrom, &cfg.ValidTo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ServiceConfig{}, model.ErrNotFound
		}
		return model.ServiceConfig{}, fmt.Errorf("failed to get service config: %w", err)
	}

	return cfg, nil
}

func (r *ServiceConfigRepository) List(ctx context.Context, userID uuid.UUID) ([]model.ServiceConfig, error) {
	query := `SELECT id, user_id, config_name, config_price, max_traffic, remote_client_id, cached_data, valid_from, valid_to
			  FROM service_configs WHERE user_id = $1 ORDER BY config_name`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select service configs: %w", err)
	}
	defer rows.Close()

	var cfgs []model.ServiceConfig
	for rows.Next() {
		var cfg model.ServiceConfig
		if err := rows.Scan(
			&cfg.ID, &cfg.UserID, &cfg.Name, &cfg.Price, &cfg.MaxTraffic,
			&cfg.RemoteClientID, &cfg.Cached, &cfg.ValidFrom, &cfg.ValidTo,
		); err != nil {
			return nil, fmt.Errorf("failed to scan service config: %w", err)
		}
		cfgs = append(cfgs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read service configs: %w", err)
	}

	return cfgs, nil
}

func (r *ServiceConfigRepository) UpdateCache(ctx context.Context, userID uuid.UUID, configName string, cached model.CachedLink) (model.Code, error) {
	query := `UPDATE service_configs SET cached_data = $3
			  WHERE user_id = $1 AND config_name = $2`

	cmd, err := r.db.Exec(ctx, query, userID, configName, cached)
	if err != nil {
		return classify(err)
	}

	return updCode(cmd.RowsAffected()), nil
}

// Delete removes the configuration row; orders cascade.
func (r *ServiceConfigRepository) Delete(ctx context.Context, userID uuid.UUID, configName string) (model.Code, error) {
	query := `DELETE FROM service_configs WHERE user_id = $1 AND config_name = $2`

	cmd, err := r.db.Exec(ctx, query, userID, configName)
	if err != nil {
		return classify(err)
	}

	return delCode(cmd.RowsAffected()), nil
}

// ListExpiring returns currently active configurations whose validity
// ends within the window, joined with their owners. Used by the reminder
// job, which only reads.
func (r *ServiceConfigRepository) ListExpiring(ctx context.Context, within time.Duration) ([]model.ExpiringConfig, error) {
	query := `SELECT u.telegram_id, sc.config_name, sc.valid_to
			  FROM service_configs sc
			  JOIN users u ON u.id = sc.user_id
			  WHERE sc.valid_from <= now() AND sc.valid_to > now() AND sc.valid_to <= now() + make_interval(secs => $1)
			  ORDER BY u.telegram_id, sc.config_name`

	rows, err := r.db.Query(ctx, query, within.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to select expiring configs: %w", err)
	}
	defer rows.Close()

	var cfgs []model.ExpiringConfig
	for rows.Next() {
		var cfg model.ExpiringConfig
		if err := rows.Scan(&cfg.TelegramID, &cfg.ConfigName, &cfg.ValidTo); err != nil {
			return nil, fmt.Errorf("failed to scan expiring config: %w", err)
		}
		cfgs = append(cfgs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expiring configs: %w", err)
	}

	return cfgs, nil
}
