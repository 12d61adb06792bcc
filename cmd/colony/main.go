package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mroshb/colony_engine/internal/catalog"
	"github.com/mroshb/colony_engine/internal/clock"
	"github.com/mroshb/colony_engine/internal/config"
	"github.com/mroshb/colony_engine/internal/database"
	"github.com/mroshb/colony_engine/internal/events"
	"github.com/mroshb/colony_engine/internal/notify"
	"github.com/mroshb/colony_engine/internal/repositories"
	"github.com/mroshb/colony_engine/internal/scheduler"
	"github.com/mroshb/colony_engine/internal/security"
	"github.com/mroshb/colony_engine/internal/services"
	"github.com/mroshb/colony_engine/pkg/logger"
	"github.com/mroshb/colony_engine/pkg/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	logger.Init()
	defer logger.Sync()

	logger.Info("Starting colony engine...")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("Failed to load catalog", err)
	}
	logger.Info("Catalog loaded", "buildings", len(cat.Buildings()), "research", len(cat.ResearchNodes()))

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinks := events.Fanout{events.LogSink{}}
	notifierDone := make(chan struct{})
	if cfg.NotifierEnabled() {
		notifier, err := newNotifier(cfg)
		if err != nil {
			logger.Fatal("Failed to initialize notifier", err)
		}
		sinks = append(sinks, notifier)
		go func() {
			defer close(notifierDone)
			_ = notifier.Run(ctx)
		}()
	} else {
		close(notifierDone)
	}

	engine := services.NewEngine(services.Deps{
		Store:     repositories.NewGormStore(db),
		Catalog:   cat,
		Clock:     clock.RealClock{},
		Roller:    utils.NewRoller(),
		Publisher: sinks,
		Settings: services.Settings{
			DestroyRefundPercent: cfg.DestroyRefundPercent,
			ApplyMoralePenalty:   cfg.ApplyMoralePenalty,
		},
	})

	sched := scheduler.New(engine, scheduler.Intervals{
		Missions:     cfg.MissionScanInterval,
		Research:     cfg.ResearchScanInterval,
		Production:   cfg.ProductionInterval,
		Regeneration: cfg.RegenInterval,
	})
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", err)
	}

	logger.Info("Engine started successfully", "env", cfg.AppEnv)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")
	sched.Stop()
	cancel()
	select {
	case <-notifierDone:
	case <-time.After(5 * time.Second):
		logger.Warn("Notifier did not drain in time")
	}
	logger.Info("Engine stopped")
}

func newNotifier(cfg *config.Config) (*notify.TelegramNotifier, error) {
	api, err := notify.NewBotSender(cfg.TelegramBotToken, cfg.AppEnv == "development")
	if err != nil {
		return nil, err
	}
	opts := notify.Options{
		ChatID:           cfg.TelegramChatID,
		RatePerSecond:    cfg.NotifyRatePerSecond,
		VillagePerMinute: cfg.NotifyVillagePerMinute,
	}
	if cfg.EventSigningKey != "" {
		signer, err := security.NewEventSigner(cfg.EventSigningKey, "colony_engine", 24*time.Hour)
		if err != nil {
			return nil, err
		}
		opts.Signer = signer
	}
	return notify.NewTelegramNotifier(api, opts), nil
}
