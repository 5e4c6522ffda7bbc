package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"applytrack-utils/internal/api/routes"
	"applytrack-utils/internal/cache"
	"applytrack-utils/internal/classify"
	"applytrack-utils/internal/config"
	"applytrack-utils/internal/dedup"
	"applytrack-utils/internal/logging"
	"applytrack-utils/internal/scheduler"
	"applytrack-utils/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logging
	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger := logging.GetGlobalLogger()
	logger.Info("Starting ApplyTrack Utils")

	ctx := context.Background()

	// Postgres
	pool, err := storage.NewPostgresPool(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer pool.Close()

	jobStore := storage.NewPostgresJobStore(pool)
	dupStore := storage.NewPostgresDuplicateStore(pool)
	profileStore := storage.NewPostgresProfileStore(pool)

	// Redis: fast cache tier plus the per-user sweep lock
	fastTier := cache.NewRedisTier(cfg)
	if err := fastTier.Ping(ctx); err != nil {
		// Cache degrades to the durable tier; dedup locks fail closed.
		logger.Warn("Redis unreachable at startup", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer fastTier.Close()

	locker := storage.NewRedisUserLocker(fastTier.Client())

	// Two-tier classification cache
	durableTier := cache.NewPostgresTier(pool)
	classCache := cache.NewClassificationCache(fastTier, durableTier, cfg.Cache.FastTTL, cfg.Cache.KeyPrefix)

	// Deduplication engine
	engine := dedup.NewEngine(cfg, jobStore, dupStore, locker)

	// Scorer manager and classification service
	scorerManager := classify.NewManager(cfg)
	if err := scorerManager.Start(); err != nil {
		logger.Fatal("Failed to start scorer manager", map[string]interface{}{
			"error": err.Error(),
		})
	}

	classifyService := classify.NewService(cfg, scorerManager, classCache, jobStore, profileStore)

	// Scheduled deduplication sweep
	var sweep *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sweep = scheduler.New(engine, jobStore, cfg.Scheduler.Spec)
		if err := sweep.Start(ctx); err != nil {
			logger.Fatal("Failed to start scheduler", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Setup routes
	routes.SetupRoutes(e, cfg, engine, classifyService, scorerManager)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if sweep != nil {
			logger.Info("Stopping scheduler...")
			sweep.Stop()
		}

		logger.Info("Stopping scorer manager...")
		if err := scorerManager.Stop(); err != nil {
			logger.Error("Error stopping scorer manager", map[string]interface{}{
				"error": err.Error(),
			})
		}

		logger.Info("Stopping HTTP server...")
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down server", map[string]interface{}{
				"error": err.Error(),
			})
		}

		logger.Info("Server shutdown complete")
	}()

	// Start server
	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", map[string]interface{}{
		"address": address,
	})

	if err := e.Start(address); err != nil {
		logger.Fatal("Server failed to start", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
