package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camagru/camagru/internal/auth"
	"github.com/camagru/camagru/internal/cache"
	"github.com/camagru/camagru/internal/compositor"
	"github.com/camagru/camagru/internal/config"
	"github.com/camagru/camagru/internal/database"
	"github.com/camagru/camagru/internal/editing"
	"github.com/camagru/camagru/internal/events"
	"github.com/camagru/camagru/internal/gallery"
	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/metrics"
	"github.com/camagru/camagru/internal/middleware"
	"github.com/camagru/camagru/internal/profile"
	"github.com/camagru/camagru/internal/queue"
	"github.com/camagru/camagru/internal/storage"
	"github.com/camagru/camagru/internal/tracing"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	closer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	} else {
		defer closer.Close()
	}

	// Initialize database
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := db.Migrate(context.Background()); err != nil {
			logger.WithError(err).Fatal("Failed to apply migrations")
		}
	}
	repo := database.NewRepository(db)

	// Initialize storage
	sink, err := storage.New(cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}

	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to queue")
	}
	defer q.Close()

	publisher := events.New(cfg.Events)
	defer publisher.Close()

	jwtAuth := middleware.NewJWTAuth(cfg.Auth.JWTSecret, cfg.Auth.CookieName, redisCache)

	comp := compositor.New(compositor.Options{
		Width:          cfg.Editing.CanvasWidth,
		Height:         cfg.Editing.CanvasHeight,
		ThumbnailSize:  cfg.Editing.ThumbnailSize,
		MinDelay:       cfg.Editing.MinFrameDelay,
		MaxDelay:       cfg.Editing.MaxFrameDelay,
		DefaultDelay:   cfg.Editing.DefaultFrameDelay,
		MaxImageBytes:  cfg.Editing.MaxImageBytes,
		MaxPixels:      cfg.Editing.MaxPixels,
		ProcessTimeout: cfg.Editing.ProcessTimeout,
	})

	api := &API{
		auth: auth.NewService(repo, q, redisCache, jwtAuth, auth.Config{
			TokenTTL:        cfg.Auth.TokenTTL,
			VerificationTTL: cfg.Auth.VerificationTTL,
			ResetTTL:        cfg.Auth.ResetTTL,

			ResetRequestsPerHour: cfg.Auth.ResetRequestsPerHour,
		}, logger),
		profile: profile.NewService(repo, sink, logger),
		editing: editing.NewService(repo, redisCache, sink, publisher, comp, editing.Config{
			AssetsDir:  cfg.Editing.AssetsDir,
			StickerTTL: cfg.Redis.StickerTTL,
			MaxFrames:  cfg.Editing.MaxFrames,
		}, logger),
		gallery:     gallery.NewService(repo, q, logger),
		sink:        sink,
		health:      repo,
		jwt:         jwtAuth,
		rateLimiter: middleware.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst),
		windows:     redisCache,
		cfg:         cfg,
		logger:      logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go api.rateLimiter.Cleanup(ctx, time.Minute, 10*time.Minute)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      setupRouter(api),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Metrics server forced to shutdown")
		}
	}

	logger.Info("Server stopped")
}
