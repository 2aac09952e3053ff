package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/pkg/cache"
	"github.com/gilby125/seven-continents/pkg/health"
	"github.com/gilby125/seven-continents/pkg/metrics"
	"github.com/gilby125/seven-continents/pkg/middleware"
	"github.com/gilby125/seven-continents/worker"
)

// Deps are the services the HTTP API is built on. Health and Cache may be nil.
type Deps struct {
	Manager *worker.Manager
	Health  *health.HealthChecker
	Cache   *cache.CacheManager
	Auth    config.AuthConfig
}

// NewRouter returns a gin engine with the middleware chain and every route
// registered.
func NewRouter(deps Deps) *gin.Engine {
	metrics.RegisterDefault()
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics())
	RegisterRoutes(router, deps)
	return router
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", healthHandler(deps.Health, false))
	router.GET("/health/ready", healthHandler(deps.Health, true))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	auth := middleware.RunAuth(deps.Auth)

	v1 := router.Group("/api/v1")
	{
		// Run routes
		v1.POST("/runs", auth, CreateRun(deps.Manager))
		v1.GET("/runs", ListRuns(deps.Manager))
		v1.GET("/runs/:id", GetRun(deps.Manager))
		v1.GET("/runs/:id/summary", GetRunSummary(deps.Manager))
		v1.GET("/runs/:id/events", StreamRunEvents(deps.Manager, time.Second))
		v1.DELETE("/runs/:id", auth, CancelRun(deps.Manager))

		// Lookup routes
		airports := v1.Group("/airports")
		if deps.Cache != nil {
			airports.Use(middleware.ResponseCache(deps.Cache, middleware.CacheConfig{
				TTL:       time.Hour,
				KeyPrefix: "airports",
			}))
		}
		airports.GET("/:code", GetAirport(deps.Manager))
		v1.GET("/segments", GetSegment(deps.Manager))
	}
}

func healthHandler(h *health.HealthChecker, readiness bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil {
			c.JSON(http.StatusOK, gin.H{"status": health.StatusUp})
			return
		}
		report := h.CheckHealth(c.Request.Context())
		if readiness {
			report = h.CheckReadiness(c.Request.Context())
		}
		status := http.StatusOK
		if report.Status == health.StatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
