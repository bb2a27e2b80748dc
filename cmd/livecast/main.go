package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mossy-p/livecast/config"
	"github.com/mossy-p/livecast/internal/handlers"
	"github.com/mossy-p/livecast/internal/metrics"
	"github.com/mossy-p/livecast/internal/recordings"
	"github.com/mossy-p/livecast/internal/redis"
	"github.com/mossy-p/livecast/internal/signaling"
	"github.com/mossy-p/livecast/internal/storage"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := config.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Recordings directory
	dir, err := storage.NewDir(cfg.Recordings.Dir)
	if err != nil {
		logger.Error("Failed to initialize recordings directory", "dir", cfg.Recordings.Dir, "error", err)
		os.Exit(1)
	}
	logger.Info("Recordings directory ready", "dir", dir.Root())

	// Optional Redis presence mirror
	var presence *redis.Presence
	if cfg.Redis.Enabled() {
		presence, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr(), "error", err)
			os.Exit(1)
		}
		defer presence.Close()
		logger.Info("Redis connection established", "addr", cfg.Redis.Addr())
	}

	m := metrics.New()
	store := recordings.NewStore(dir, recordings.Options{
		Ext:        cfg.Recordings.Ext,
		Extensions: cfg.Recordings.Extensions,
		DeriveExt:  cfg.Recordings.DeriveExt,
	}, logger)

	registry := signaling.NewRegistry()
	relay := signaling.NewRelay(registry, m, logger)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(
		handlers.RouterConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			PublicDir:      cfg.PublicDir,
		},
		handlers.NewRecordingsHandler(store, cfg.Recordings.MaxUploadBytes, m, logger),
		handlers.NewSignalingHandler(registry, relay, presence, m, logger),
		m,
		logger,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting livecast server", "port", cfg.Port, "environment", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
		}
	}
}
