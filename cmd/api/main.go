package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"contactbook/internal/cache"
	"contactbook/internal/config"
	"contactbook/internal/database"
	"contactbook/internal/handlers"
	"contactbook/internal/jobs"
	"contactbook/internal/log"
	"contactbook/internal/mail"
	"contactbook/internal/repository"
	"contactbook/internal/security"
	"contactbook/internal/server"
	"contactbook/internal/service"
	"contactbook/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	tokens, err := security.NewTokenCodec(cfg.Security.JWTSecret, cfg.Security.JWTAlgorithm, security.TokenTTLs{
		Access:  cfg.Security.JWTAccessTTL,
		Refresh: cfg.Security.JWTRefreshTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid jwt configuration")
	}

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Postgres.DSN); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	avatars, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init avatar storage")
	}

	users := service.NewPostgresUsers(repository.NewUserRepository(dbPool, cfg.Postgres.OpTimeout))
	contacts := repository.NewContactRepository(dbPool, cfg.Postgres.OpTimeout)
	sessions := cache.NewSessionCache(redisClient, cfg.Redis.OpTimeout)
	birthdayCache := cache.NewBirthdayCache(redisClient, cfg.Redis.OpTimeout)
	mailer := mail.NewQueueSender(redisClient, cfg.Mail.Stream, cfg.Redis.OpTimeout)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Deps{
		Auth:      service.NewAuthService(users, sessions, tokens, mailer, cfg, logger),
		Users:     service.NewUserService(users, sessions, avatars, cfg.Storage.MaxAvatarSize, logger),
		Birthdays: service.NewBirthdayService(contacts, birthdayCache, cfg.Cache.BirthdayTTL, logger),
		Resolver:  service.NewIdentityResolver(tokens, users, sessions, cfg.Cache.UserSnapshotTTL, logger),
		Database:  dbPool,
		Cache:     cache.NewHealthCheck(redisClient),
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(birthdayCache, logger)
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

	scheduler.Stop(shutdownCtx)

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
