package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/model"
)

// ProvisionConfig carries the grant terms and cache policy for the
// reconciliation service.
type ProvisionConfig struct {
	FreeConfigDays int
	ConfigPrice    float64
	MaxTraffic     float64
	CacheFreshness time.Duration
	PanelTimeout   time.Duration
}

// Provision keeps the local record of remote-provisioned credentials
// consistent with the panel. The panel is the system of record; the
// local row carries the validity window the order workflow extends plus
// a TTL-bounded cache of the connection link.
type Provision struct {
	configStore model.ServiceConfigStore
	userStore   model.UserStore
	panel       model.Panel
	cfg         ProvisionConfig
	logger      *logger.Logger
	now         func() time.Time
}

func NewProvision(
	configStore model.ServiceConfigStore,
	userStore model.UserStore,
	panel model.Panel,
	cfg ProvisionConfig,
	logger *logger.Logger,
) *Provision {
	return &Provision{
		configStore: configStore,
		userStore:   userStore,
		panel:       panel,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// panelCtx bounds every remote call; a hung panel must not block the
// enclosing operation indefinitely.
func (s *Provision) panelCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.PanelTimeout)
}

// nextConfigName numbers configurations vless_<tgid>_<n> per user.
func nextConfigName(telegramID int64, existing []model.ServiceConfig) string {
	prefix := fmt.Sprintf("%d_", telegramID)
	maxN := 0
	for _, cfg := range existing {
		_, suffix, found := strings.Cut(cfg.Name, prefix)
		if !found {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > maxN {
			maxN = n
		}
	}
	return fmt.Sprintf("vless_%d_%d", telegramID, maxN+1)
}

// EnsureConfig provisions a new configuration end to end: allocate a
// free port, find or create the inbound, create the credential, set its
// remote expiry, and only then persist the local row. Remote steps come
// first so a remote failure leaves no local record; a failed local
// insert leaves an orphan credential the next attempt reuses, because
// the credential id derives from the configuration name.
func (s *Provision) EnsureConfig(ctx context.Context, telegramID int64) (model.ServiceConfig, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.ServiceConfig{}, fmt.Errorf("failed to resolve user: %w", err)
	}

	existing, err := s.configStore.List(ctx, user.ID)
	if err != nil {
		return model.ServiceConfig{}, fmt.Errorf("failed to list configs: %w", err)
	}
	configName := nextConfigName(telegramID, existing)

	pctx, cancel := s.panelCtx(ctx)
	defer cancel()

	port, err := s.panel.FreePort(pctx)
	if err != nil {
		return model.ServiceConfig{}, fmt.Errorf("failed to find free port: %w", err)
	}

	inboundID, err := s.panel.EnsureInbound(pctx, strconv.FormatInt(telegramID, 10), port)
	if err != nil {
		return model.ServiceConfig{}, fmt.Errorf("failed to ensure inbound: %w", err)
	}

	now := s.now()
	validTo := now.AddDate(0, 0, s.cfg.FreeConfigDays)
	clientID, err := s.panel.CreateClient(pctx, inboundID, configName, validTo)
	if err != nil {
		return model.ServiceConfig{}, fmt.Errorf("failed to create panel client: %w", err)
	}
	if err := s.panel.UpdateClientExpiry(pctx, configName, validTo); err != nil {
		return model.ServiceConfig{}, fmt.Errorf("failed to set panel client expiry: %w", err)
	}

	cfg := model.ServiceConfig{
		ID:             model.DeriveConfigID(user.ID, configName),
		UserID:         user.ID,
		Name:           configName,
		Price:          s.cfg.ConfigPrice,
		MaxTraffic:     s.cfg.MaxTraffic,
		RemoteClientID: clientID,
		ValidFrom:      now,
		ValidTo:        validTo,
	}
	code, err := s.configStore.Create(ctx, cfg)
	if err != nil {
		s.logger.Error("failed to persist config", "config_name", configName, "error", err)
		return model.ServiceConfig{}, fmt.Errorf("failed to persist config: %w", err)
	}
	if code != model.CodeSuccess {
		return model.ServiceConfig{}, fmt.Errorf("failed to persist config %s: %s", configName, code)
	}

	if err := s.refreshCache(ctx, user.ID, configName); err != nil {
		// The link cache is rebuilt on first read; creation stands.
		s.logger.Warn("failed to warm link cache", "config_name", configName, "error", err)
	}

	return s.configStore.Get(ctx, user.ID, configName)
}

// ConnectionLink returns the connection string, serving the local cache
// while it is younger than the freshness window and re-fetching from the
// panel otherwise.
func (s *Provision) ConnectionLink(ctx context.Context, telegramID int64, configName string) (string, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}

	cfg, err := s.configStore.Get(ctx, user.ID, configName)
	if err != nil {
		return "", fmt.Errorf("failed to get config: %w", err)
	}

	if cfg.Cached != nil && cfg.Cached.Fresh(s.now(), s.cfg.CacheFreshness) {
		return cfg.Cached.Link, nil
	}

	if err := s.refreshCache(ctx, user.ID, configName); err != nil {
		return "", err
	}

	cfg, err = s.configStore.Get(ctx, user.ID, configName)
	if err != nil {
		return "", fmt.Errorf("failed to get config: %w", err)
	}
	if cfg.Cached == nil {
		return "", fmt.Errorf("config %s has no cached link after refresh", configName)
	}
	return cfg.Cached.Link, nil
}

// refreshCache overwrites the cached link, its timestamp, and the
// remote-reported expiry from the panel.
func (s *Provision) refreshCache(ctx context.Context, userID uuid.UUID, configName string) error {
	pctx, cancel := s.panelCtx(ctx)
	defer cancel()

	link, err := s.panel.ConnectionLink(pctx, configName)
	if err != nil {
		return fmt.Errorf("failed to fetch connection link: %w", err)
	}
	client, err := s.panel.Client(pctx, configName)
	if err != nil {
		return fmt.Errorf("failed to fetch panel client: %w", err)
	}

	code, err := s.configStore.UpdateCache(ctx, userID, configName, model.CachedLink{
		Link:         link,
		CachedAt:     s.now(),
		RemoteExpiry: client.Expiry,
	})
	if err != nil {
		return fmt.Errorf("failed to update cache: %w", err)
	}
	if code != model.CodeSuccess {
		return fmt.Errorf("failed to update cache for %s: %s", configName, code)
	}
	return nil
}

// ExtendRemote pushes a new expiry to the panel. Called before the local
// close transaction commits; its failure must abort the close.
func (s *Provision) ExtendRemote(ctx context.Context, configName string, until time.Time) error {
	pctx, cancel := s.panelCtx(ctx)
	defer cancel()

	if err := s.panel.UpdateClientExpiry(pctx, configName, until); err != nil {
		return fmt.Errorf("failed to extend remote expiry: %w", err)
	}
	return nil
}

// DeleteConfig removes the remote credential first and the local row
// only after remote deletion succeeds. On remote failure the local row
// is kept so the mismatch stays visible instead of silently losing track
// of a live credential. A credential the panel no longer knows does not
// block local deletion.
func (s *Provision) DeleteConfig(ctx context.Context, telegramID int64, configName string) error {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	pctx, cancel := s.panelCtx(ctx)
	defer cancel()

	if err := s.panel.DeleteClient(pctx, configName); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to delete panel client: %w", err)
	}

	code, err := s.configStore.Delete(ctx, user.ID, configName)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	if code != model.CodeSuccess {
		return fmt.Errorf("failed to delete config %s: %s", configName, code)
	}
	return nil
}

// Configs lists the user's configurations.
func (s *Provision) Configs(ctx context.Context, telegramID int64) ([]model.ServiceConfig, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.configStore.List(ctx, user.ID)
}

// Config returns one configuration by name.
func (s *Provision) Config(ctx context.Context, telegramID int64, configName string) (model.ServiceConfig, error) {
	user, err := s.userStore.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return model.ServiceConfig{}, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.configStore.Get(ctx, user.ID, configName)
}
