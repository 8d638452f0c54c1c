package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wiregram/wiregram-server/internal/bot"
	"github.com/wiregram/wiregram-server/internal/config"
	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/notify"
	"github.com/wiregram/wiregram-server/internal/panel/xui"
	"github.com/wiregram/wiregram-server/internal/repository/postgres"
	"github.com/wiregram/wiregram-server/internal/service"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	accessRepo := postgres.NewAccessRepository(db)
	configRepo := postgres.NewServiceConfigRepository(db)
	orderRepo := postgres.NewOrderRepository(db)

	panel, err := xui.NewClient(xui.Config{
		Host:     cfg.Panel.Host,
		Username: cfg.Panel.Username,
		Password: cfg.Panel.Password,
		BasePort: cfg.Panel.BasePort,
		MaxPorts: cfg.Panel.MaxPorts,
		Timeout:  cfg.Panel.Timeout,
		Reality: xui.Reality{
			PrivateKey:  cfg.Panel.Reality.PrivateKey,
			PublicKey:   cfg.Panel.Reality.PublicKey,
			Dest:        cfg.Panel.Reality.Dest,
			ServerName:  cfg.Panel.Reality.ServerName,
			ShortID:     cfg.Panel.Reality.ShortID,
			Fingerprint: cfg.Panel.Reality.Fingerprint,
		},
	}, logger.Component("xui"))
	if err != nil {
		logger.Fatal("failed to create panel client", "error", err)
	}

	accessService := service.NewAccess(userRepo, accessRepo, logger.Component("access"))
	provisionService := service.NewProvision(configRepo, userRepo, panel, service.ProvisionConfig{
		FreeConfigDays: cfg.Grants.FreeConfigDays,
		ConfigPrice:    cfg.Grants.ConfigPrice,
		MaxTraffic:     cfg.Grants.MaxTraffic,
		CacheFreshness: cfg.Grants.CacheFreshness,
		PanelTimeout:   cfg.Panel.Timeout,
	}, logger.Component("provision"))
	orderService := service.NewOrder(orderRepo, configRepo, userRepo, provisionService, logger.Component("order"))

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		logger.Fatal("failed to create telegram client", "error", err)
	}

	tgBot := bot.New(api, accessService, orderService, provisionService, bot.Grants{
		BotAccessDays: cfg.Grants.BotAccessDays,
		ExtensionDays: cfg.Grants.ExtensionDays,
	}, cfg.Bot.SuperAdminID, logger.Component("bot"))
	tgBot.SetNotifier(notify.New(tgBot, userRepo, cfg.Bot.SuperAdminID, logger.Component("notify")))

	logAppVersion()
	logger.Info("starting bot", "username", api.Self.UserName)

	if err := tgBot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped", "error", err)
	}

	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
