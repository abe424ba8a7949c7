// Package main provides the knowledge point matching server entry point.
package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ulinhsu/kpmatch-go/internal/config"
	"github.com/ulinhsu/kpmatch-go/internal/ratelimit"
)

// setupRoutes configures all HTTP routes. A nil limiter disables API
// rate limiting.
func setupRoutes(router *gin.Engine, api *apiHandler, registry *prometheus.Registry, cfg *config.Config, limiter *ratelimit.PerKeyLimiter) {
	// Liveness probe - only that the process is running, never dependencies
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/healthz", healthHandler)
	router.HEAD("/healthz", healthHandler)

	// Readiness probe - engine warmed up and index state
	router.GET("/readyz", api.handleReady)
	router.HEAD("/readyz", api.handleReady)

	v1 := router.Group("/api/v1")
	if limiter != nil {
		v1.Use(rateLimitMiddleware(limiter, api.metrics))
	}
	{
		v1.POST("/match", api.handleMatch)
		v1.POST("/classify", api.handleClassify)
		v1.POST("/similar", api.handleSimilar)
		v1.POST("/duplicates", api.handleDuplicates)
		v1.POST("/questions", api.handleImportQuestions)
		v1.GET("/statistics", api.handleStatistics)
	}

	// Prometheus metrics endpoint, basic auth when a password is configured
	metricsHandler := gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if cfg.MetricsPassword != "" {
		authorized := router.Group("/", gin.BasicAuth(gin.Accounts{
			cfg.MetricsUsername: cfg.MetricsPassword,
		}))
		authorized.GET("/metrics", metricsHandler)
	} else {
		router.GET("/metrics", metricsHandler)
	}
}
