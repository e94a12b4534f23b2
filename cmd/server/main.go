// ChartDeck Server
//
// Serves stock chart deck folders to the flashcard loader:
// - Folder manifests and per-file chart payloads
// - Prometheus metrics & structured logging (zap)
// - Optional JWT auth and PostgreSQL-backed round scores
// - Multi-backend storage (S3, local)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chartdeck/chartdeck/internal/api"
	"github.com/chartdeck/chartdeck/internal/auth"
	"github.com/chartdeck/chartdeck/internal/config"
	"github.com/chartdeck/chartdeck/internal/events"
	"github.com/chartdeck/chartdeck/internal/logging"
	"github.com/chartdeck/chartdeck/internal/metrics"
	"github.com/chartdeck/chartdeck/internal/scores"
	"github.com/chartdeck/chartdeck/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("ChartDeck Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("storage", cfg.StorageBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := storage.NewBackendFromConfig(ctx, cfg)
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}
	defer backend.Close()

	// Rounds persistence is optional; the serving path works without it.
	var roundStore *scores.Store
	if cfg.DatabaseURL != "" {
		logging.Info("connecting to PostgreSQL...")
		roundStore, err = scores.New(cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", zap.Error(err))
		}
		defer roundStore.Close()
		if err := roundStore.Migrate(ctx); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
	}

	// Auth is optional and needs the database for the user table.
	var authHandler *auth.Auth
	if cfg.JWTSecret != "" {
		if roundStore == nil {
			logging.Fatal("CHARTDECK_JWT_SECRET requires CHARTDECK_DATABASE_URL")
		}
		authHandler = auth.New(roundStore.DB(), cfg.JWTSecret)
		if err := authHandler.Migrate(ctx); err != nil {
			logging.Fatal("auth migration failed", zap.Error(err))
		}
		if err := authHandler.EnsureDefaultAdmin(ctx); err != nil {
			logging.Error("failed to ensure default admin", zap.Error(err))
		}
	}

	broadcaster := events.NewBroadcaster()
	srv := api.NewServer(backend, authHandler, roundStore, broadcaster)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
