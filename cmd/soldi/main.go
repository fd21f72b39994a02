package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"soldi/internal/amqp"
	"soldi/internal/auth"
	"soldi/internal/cache"
	"soldi/internal/config"
	apphttp "soldi/internal/http"
	applog "soldi/internal/log"
	"soldi/internal/realtime"
	"soldi/internal/session"
	"soldi/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting soldi server")

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

	// Session store: Redis when configured, in-memory for single-node dev
	var sessions session.Store
	if cfg.RedisAddr != "" {
		redisStore, err := session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Error("Failed to connect to Redis session store", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer redisStore.Close()
		sessions = redisStore
		logger.Info("Redis session store initialized", "addr", cfg.RedisAddr)
	} else {
		sessions = session.NewMemoryStore()
		logger.Warn("REDIS_ADDR not set, using in-memory session store; sessions will not survive restarts")
	}

	// AMQP consumer feeds the realtime hub with push events from the
	// reminder worker. Without a broker the API still works; only
	// cross-process pushes are lost.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, push channel disabled", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, cross-process push channel unavailable")
	}

	hub := realtime.NewHub()

	caches := cache.NewManager()
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	authSvc := auth.NewService(repo, sessions, cfg.JWTSecret, cfg.TokenTTL)

	srv := apphttp.NewServer(":"+cfg.Port, authSvc, repo, sessions, hub, caches)
	srv.Handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(srv.Handler)
	// No WriteTimeout: the notification stream holds its response open
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeNotificationPush(ctx, func(msg *amqp.NotificationPushMessage) error {
				hub.Publish(msg.UserID, realtime.Event{
					NotificationID: msg.NotificationID,
					Title:          msg.Title,
					Severity:       msg.Severity,
					CreatedAt:      msg.Timestamp,
				})
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
