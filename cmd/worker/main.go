package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"lumen-backend/internal/config"
	"lumen-backend/internal/database"
	"lumen-backend/internal/events"
	"lumen-backend/internal/logger"
	"lumen-backend/internal/mailer"
	"lumen-backend/internal/repositories"
	"lumen-backend/internal/services"
	"lumen-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, "worker")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.RabbitMQ.URL == "" {
		log.Fatal("RABBITMQ_URL is required to run the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	mq, err := events.Dial(ctx, cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal("broker", zap.Error(err))
	}
	defer mq.Close()

	sender, err := mailer.NewSender(ctx, cfg.Mail, log)
	if err != nil {
		log.Fatal("mailer", zap.Error(err))
	}

	// Only preferences are read here, so no counters or pusher.
	prefs := services.NewNotificationService(repositories.NewNotificationRepository(pool), nil, nil, log)
	emailer := worker.NewEmailer(
		repositories.NewUserRepository(pool),
		repositories.NewReaderRepository(pool),
		prefs,
		mailer.NewRenderer(),
		sender,
		log,
	)

	log.Info("worker started", zap.String("queue", cfg.RabbitMQ.Queue))
	if err := mq.Consume(ctx, cfg.RabbitMQ.Queue, worker.Keys, emailer.Handle); err != nil {
		log.Error("consumer stopped", zap.Error(err))
	}
	log.Info("worker exiting")
}
