package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lyftr/webhookd/internal/api"
	"github.com/lyftr/webhookd/internal/config"
	"github.com/lyftr/webhookd/internal/log"
	"github.com/lyftr/webhookd/internal/message"
	"github.com/lyftr/webhookd/internal/metrics"
	"github.com/lyftr/webhookd/internal/storage"
	"github.com/lyftr/webhookd/internal/webhook"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "optional YAML config file (environment variables take precedence)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("webhookd version %s\n", version)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	log.Setup(cfg.LogLevel)
	logger := log.WithComponent("webhookd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath, err := config.SQLitePath(cfg.DatabaseURL)
	if err != nil {
		logger.Error("invalid database URL", "error", err)
		return 1
	}
	db, err := storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		return 1
	}
	defer func() { _ = db.Close() }()
	logger.Info("database ready", "path", dbPath)

	if cfg.WebhookSecret == "" {
		logger.Warn("webhook secret not configured; readiness probe will fail until one is set")
	}

	store := message.NewStore(db)
	recorder := metrics.NewRecorder()
	pipeline := webhook.NewPipeline(cfg.WebhookSecret, store, recorder, log.WithComponent("webhook"))

	server := api.New(
		api.Config{
			Listen:           cfg.Listen,
			SecretConfigured: cfg.WebhookSecret != "",
		},
		pipeline,
		store,
		recorder,
		func(ctx context.Context) error { return storage.Ping(ctx, db) },
		log.WithComponent("api"),
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", "error", err)
		return 1
	}

	logger.Info("shutdown complete")
	return 0
}
