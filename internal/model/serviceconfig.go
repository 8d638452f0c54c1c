package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ServiceConfigStore defines persistence operations for provisioned
// tunnel configurations.
type ServiceConfigStore interface {
	Create(ctx context.Context, cfg ServiceConfig) (Code, error)
	Get(ctx context.Context, userID uuid.UUID, configName string) (ServiceConfig, error)
	List(ctx context.Context, userID uuid.UUID) ([]ServiceConfig, error)
	UpdateCache(ctx context.Context, userID uuid.UUID, configName string, cached CachedLink) (Code, error)
	Delete(ctx context.Context, userID uuid.UUID, configName string) (Code, error)
	ListExpiring(ctx context.Context, within time.Duration) ([]ExpiringConfig, error)
}

// CachedLink is the locally cached copy of the remote-derived connection
// string. It is a convenience cache only; the panel stays the system of
// record.
type CachedLink struct {
	Link         string    `json:"config_path"`
	CachedAt     time.Time `json:"config_path_add_dttm"`
	RemoteExpiry time.Time `json:"conf_expired_dttm"`
}

// Fresh reports whether the cache is younger than the freshness window.
func (c CachedLink) Fresh(now time.Time, window time.Duration) bool {
	return c.Link != "" && c.CachedAt.Add(window).After(now)
}

// ServiceConfig represents a provisioned, named tunnel credential plus
// its local validity window and cached connection link.
type ServiceConfig struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Name           string
	Price          float64
	MaxTraffic     float64
	RemoteClientID uuid.UUID
	Cached         *CachedLink
	ValidFrom      time.Time
	ValidTo        time.Time
}

// ExpiringConfig is what the reminder job reads: an active configuration
// joined with its owner's telegram id.
type ExpiringConfig struct {
	TelegramID int64
	ConfigName string
	ValidTo    time.Time
}
