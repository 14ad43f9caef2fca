package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/autoci/marketplace/internal/api/middleware"
	"github.com/autoci/marketplace/internal/metrics"
	"github.com/autoci/marketplace/pkg/config"
	"github.com/autoci/marketplace/pkg/logging"
)

// HealthChecker is a dependency the health endpoint probes
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Services are the backends the API methods call
type Services struct {
	Ranked        RankedFetcher
	Listings      ListingStore
	Profiles      ProfileStore
	Boosts        BoostPurchaser
	Notifications NotificationStore
	Metrics       metrics.Recorder
	Gatherer      prometheus.Gatherer
	Health        map[string]HealthChecker
}

// Router sets up API routes
type Router struct {
	handler  *JSONRPCHandler
	services Services
	server   *config.ServerConfig
	admin    *config.AdminConfig
	limiter  *middleware.RateLimiter
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(services Services, server *config.ServerConfig, admin *config.AdminConfig) *Router {
	router := &Router{
		handler:  NewJSONRPCHandler(services.Metrics),
		services: services,
		server:   server,
		admin:    admin,
		limiter:  middleware.NewRateLimiter(server.RateLimit, server.RateBurst),
		logger:   logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// Limiter returns the rate limiter so its cleanup loop can be started
func (r *Router) Limiter() *middleware.RateLimiter {
	return r.limiter
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)
	if r.services.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(metrics.Handler(r.services.Gatherer)))
	}

	engine.POST("/", middleware.UserMiddleware(), r.limiter.Limit(), r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	listings := NewListingsAPI(r.services.Ranked, r.services.Listings, r.services.Profiles, r.admin.SupersetLimit)
	r.handler.RegisterMethod("listings.get", listings.GetListing)
	r.handler.RegisterMethod("listings.get_ranked", listings.GetRanked)
	r.handler.RegisterMethod("listings.get_comparables", listings.GetComparables)
	r.handler.RegisterMethod("pricing.suggest", listings.SuggestPrice)
	r.handler.RegisterMethod("admin.list_listings", listings.ListForAdmin)

	boosts := NewBoostAPI(r.services.Boosts)
	r.handler.RegisterMethod("boost.purchase", boosts.Purchase)

	notifications := NewNotificationsAPI(r.services.Notifications)
	r.handler.RegisterMethod("notifications.unread_count", notifications.UnreadCount)
	r.handler.RegisterMethod("notifications.list", notifications.List)
	r.handler.RegisterMethod("notifications.mark_read", notifications.MarkRead)

	account := NewAccountAPI(r.services.Profiles, r.server)
	r.handler.RegisterMethod("account.profile_status", account.ProfileStatus)
	r.handler.RegisterMethod("auth.sanitize_redirect", account.SanitizeRedirect)

	r.logger.Debug("Registered JSON-RPC methods", zap.Int("count", r.handler.Methods()))
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(r.services.Health))
	for name, checker := range r.services.Health {
		if err := checker.Health(ctx); err != nil {
			r.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := gin.H{
		"status":  "OK",
		"service": "marketplace-api",
		"checks":  checks,
	}
	if status != http.StatusOK {
		body["status"] = "DEGRADED"
	}
	c.JSON(status, body)
}
