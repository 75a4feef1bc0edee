package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xaenox/reality-filter-bot/internal/archive"
	"github.com/xaenox/reality-filter-bot/internal/bot"
	"github.com/xaenox/reality-filter-bot/internal/classifier"
	"github.com/xaenox/reality-filter-bot/internal/digest"
	"github.com/xaenox/reality-filter-bot/internal/ops"
	"github.com/xaenox/reality-filter-bot/internal/presence"
	"github.com/xaenox/reality-filter-bot/internal/storage"
	"github.com/xaenox/reality-filter-bot/internal/triage"
	"github.com/xaenox/reality-filter-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	configPath := "config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}

	// Initialize logger
	logger := newLogger(cfg.Log.Development)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	arch := archive.New(store)
	pres := presence.New(store)
	agg := digest.New(arch)
	svc := triage.NewService(classifier.New(), arch, pres, triage.NewMetrics(reg), logger)

	b, err := bot.New(cfg.Telegram.Token, cfg.Telegram.Timeout, bot.Services{
		Users:    store,
		Triage:   svc,
		Presence: pres,
		Digest:   agg,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	if cfg.Digest.Enabled {
		scheduler, err := bot.NewDigestScheduler(cfg.Digest.Cron, store, agg, b.Sender(), logger)
		if err != nil {
			logger.Fatal("Failed to create digest scheduler", zap.Error(err))
		}
		logger.Info("Daily digest enabled", zap.String("cron", cfg.Digest.Cron))
		go scheduler.Run(ctx)
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := ops.Serve(ctx, cfg.Metrics.Addr, reg, logger); err != nil {
				logger.Error("Ops server stopped", zap.Error(err))
			}
		}()
	}

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Bot stopped")
}

func newLogger(development bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openStorage(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case config.DriverPostgres:
		logger.Info("Using PostgreSQL storage")
		return storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
		}, logger)
	default:
		logger.Info("Using SQLite storage")
		return storage.NewSQLiteStorage(cfg.SQLitePath, logger)
	}
}
