package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/autoci/marketplace/internal/api"
	"github.com/autoci/marketplace/internal/boost"
	"github.com/autoci/marketplace/internal/cache"
	"github.com/autoci/marketplace/internal/db"
	"github.com/autoci/marketplace/internal/metrics"
	"github.com/autoci/marketplace/internal/ranking"
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
	logger.Info("Starting Marketplace API Server")

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

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis cache", zap.Error(err))
	}
	defer redisCache.Close()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	repo := db.NewRepository(database.DB, database.Columns)
	listings := db.NewListingRepository(repo)

	ranked := cache.NewTiered(cache.NewMemory(cfg.Ranking.CacheTTL, cfg.Ranking.CacheSize), redisCache)
	ranker := ranking.NewRanker(listings, ranked, database.Columns, &cfg.Ranking,
		ranking.WithMetrics(collector))
	boosts := boost.NewService(boost.NewGormStore(repo), database.Columns, cfg.Boost.Prices,
		boost.WithMetrics(collector))

	health := map[string]api.HealthChecker{"database": database}
	if redisCache != nil {
		health["redis"] = redisCache
	}

	router := api.NewRouter(api.Services{
		Ranked:        ranker,
		Listings:      listings,
		Profiles:      db.NewProfileRepository(repo),
		Boosts:        boosts,
		Notifications: db.NewNotificationRepository(repo),
		Metrics:       collector,
		Gatherer:      prometheus.DefaultGatherer,
		Health:        health,
	}, &cfg.Server, &cfg.Admin)

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	router.SetupRoutes(engine)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go router.Limiter().Run(ctx)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
