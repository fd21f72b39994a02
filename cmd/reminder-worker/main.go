package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"soldi/internal/amqp"
	"soldi/internal/config"
	applog "soldi/internal/log"
	"soldi/internal/services"
	"soldi/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentNotifier,
	})
	applog.SetDefault(logger)

	logger.Info("Starting reminder-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP client carries push events to the API server's realtime hub.
	// Without it reminders are still persisted, just not pushed live.
	var publisher services.PushPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without live push", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, reminders will not be pushed live")
	}

	// The worker has no view of live connections, so presence is nil and
	// every reminder is pushed; the consumer side drops events for users
	// without a subscription.
	producer := services.NewNotificationProducer(repo, publisher, nil)

	notifier := services.NewReminderNotifier(repo, producer, services.ReminderNotifierConfig{
		Interval: cfg.NotifierInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Reminder notifier configured",
		"interval", cfg.NotifierInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	if err := notifier.Start(ctx); err != nil {
		logger.Error("Failed to start reminder notifier", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := notifier.Stop(shutdownCtx); err != nil {
		logger.Warn("Reminder notifier stop timed out", "error", err)
		os.Exit(1)
	}
	logger.Info("Reminder-worker shutdown complete")
}
