package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskflow/internal/cache"
	"taskflow/internal/config"
	"taskflow/internal/database"
	"taskflow/internal/delivery"
	"taskflow/internal/handlers"
	"taskflow/internal/jobs"
	"taskflow/internal/log"
	"taskflow/internal/mailer"
	"taskflow/internal/notify"
	"taskflow/internal/repository"
	"taskflow/internal/server"
	"taskflow/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	users := repository.NewUserRepository(dbPool)
	sessions := repository.NewSessionRepository(dbPool)
	projects := repository.NewProjectRepository(dbPool)
	tasks := repository.NewTaskRepository(dbPool)
	notifications := repository.NewNotificationRepository(dbPool)
	tx := database.NewTransactor(dbPool)

	checks := []handlers.HealthCheck{
		{Name: "database", Ping: dbPool.Ping},
		{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}

	var notifier service.Notifier
	switch cfg.Notifications.Mode {
	case config.NotifyModeStream:
		notifier = notify.NewStreamNotifier(redisClient, cfg.Redis.Stream, cfg.Notifications.DeliveryTimeout, logger)
	case config.NotifyModeInline:
		sender, store, err := mailer.FromConfig(ctx, cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init mailer")
		}
		if store != nil {
			checks = append(checks, handlers.HealthCheck{Name: "storage", Ping: store.Ping})
		}
		dispatcher := delivery.NewDispatcher(users, tasks, sender, logger)
		notifier = notify.NewInlineNotifier(dispatcher, cfg.Notifications.DeliveryTimeout, logger)
	default:
		notifier = notify.Noop{}
	}
	logger.Info().Str("mode", cfg.Notifications.Mode).Msg("notification delivery configured")

	authService := service.NewAuthService(users, sessions, cfg.Security, logger)
	ledger := service.NewNotificationService(notifications, logger)
	svc := handlers.Services{
		Auth:          authService,
		Tasks:         service.NewTaskService(tx, tasks, users, projects, ledger, notifier, logger),
		Users:         service.NewUserService(tx, users, sessions, tasks, logger),
		Projects:      service.NewProjectService(projects, logger),
		Notifications: ledger,
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, svc, redisClient, checks...)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(authService, cfg.Jobs.SessionPurgeSpec, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
