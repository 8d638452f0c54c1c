// The reminder binary makes a single pass over active configurations
// expiring within a day and messages each owner. It is meant to run
// from cron, once a day.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wiregram/wiregram-server/internal/bot"
	"github.com/wiregram/wiregram-server/internal/config"
	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/notify"
	"github.com/wiregram/wiregram-server/internal/repository/postgres"
)

const expiryWindow = 24 * time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
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

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		logger.Fatal("failed to create telegram client", "error", err)
	}
	sender := bot.NewSender(api, logger)

	userRepo := postgres.NewUserRepository(db)
	configRepo := postgres.NewServiceConfigRepository(db)
	notifier := notify.New(sender, userRepo, cfg.Bot.SuperAdminID, logger.Component("notify"))

	expiring, err := configRepo.ListExpiring(ctx, expiryWindow)
	if err != nil {
		logger.Fatal("failed to list expiring configs", "error", err)
	}

	now := time.Now()
	for _, exp := range expiring {
		notifier.ConfigExpiring(ctx, exp, now)
	}

	logger.Info("reminder pass complete", "notified", len(expiring))
}
