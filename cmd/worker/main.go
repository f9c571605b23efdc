package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"contactbook/internal/cache"
	"contactbook/internal/config"
	"contactbook/internal/log"
	"contactbook/internal/mail"
	"contactbook/internal/queue"
	"contactbook/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	client, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	renderer, err := mail.NewRenderer()
	if err != nil {
		logger.Fatal().Err(err).Msg("mail templates failed to load")
	}

	processor := tasks.NewProcessor(renderer, mail.NewSMTPSender(cfg.Mail), logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Mail.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	logger.Info().Str("stream", cfg.Mail.Stream).Str("group", cfg.Worker.Group).Msg("mail worker started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(cfg.Mail.SendTimeout):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
