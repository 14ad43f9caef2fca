package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/autoci/marketplace/internal/db"
	"github.com/autoci/marketplace/internal/metrics"
	"github.com/autoci/marketplace/internal/reconcile"
	"github.com/autoci/marketplace/pkg/config"
	"github.com/autoci/marketplace/pkg/logging"
	"github.com/autoci/marketplace/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Marketplace boost reconciler")

	if !cfg.Reconcile.Enabled {
		logger.Info("Boost reconciliation disabled, exiting")
		return
	}

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	repo := db.NewRepository(database.DB, database.Columns)
	reconciler := reconcile.New(
		db.NewListingRepository(repo),
		db.NewBoostRepository(repo),
		cfg.Reconcile.Interval,
		reconcile.WithMetrics(metrics.NewCollector(prometheus.DefaultRegisterer)),
	)

	// Expose metrics for scraping
	if cfg.Telemetry.PrometheusEnabled {
		metricsSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Telemetry.PrometheusPort),
			Handler: metrics.Handler(prometheus.DefaultGatherer),
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer metricsSrv.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- reconciler.Run(ctx) }()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down reconciler...")
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Reconciler stopped with error", zap.Error(err))
	}
	logger.Info("Reconciler exited")
}
