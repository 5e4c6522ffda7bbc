package routes

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"applytrack-utils/internal/api/handlers"
	"applytrack-utils/internal/api/middleware"
	"applytrack-utils/internal/classify"
	"applytrack-utils/internal/config"
	"applytrack-utils/internal/dedup"
)

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, cfg *config.Config, engine *dedup.Engine, classifyService *classify.Service, scorerManager *classify.Manager) {
	// Global middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig())
	e.Use(middleware.RequestValidation())
	e.Use(middleware.TimeoutConfig(cfg.Server.ReadTimeout))

	// Health check routes
	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(scorerManager))
		health.GET("/live", handlers.LivenessHandler)
		health.GET("/scorer", handlers.ScorerHealthHandler(scorerManager))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")
	{
		// Deduplication routes
		dedupGroup := v1.Group("/dedup")
		{
			dedupGroup.POST("/run", handlers.DedupRunHandler(engine))
			dedupGroup.POST("/merge", handlers.MergeHandler(engine))
			dedupGroup.POST("/unlink", handlers.UnlinkHandler(engine))
		}

		// Job listing routes
		v1.GET("/jobs", handlers.JobListHandler(engine))
		v1.GET("/jobs/:id/duplicates", handlers.JobDuplicatesHandler(engine))

		// Classification routes
		classifyGroup := v1.Group("/classify")
		{
			classifyGroup.POST("", handlers.ClassifyHandler(classifyService))
			classifyGroup.POST("/batch", handlers.ClassifyBatchHandler(classifyService))
		}

		// Cache management routes
		v1.POST("/cache/invalidate", handlers.InvalidateCacheHandler(classifyService))
	}

	// Root route
	e.GET("/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"service": "ApplyTrack Utils",
			"version": "1.0.0",
			"status":  "running",
		})
	})
}
