package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applytrack-utils/internal/classify"
	"applytrack-utils/pkg/models"
)

var startTime = time.Now()

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(startTime),
		Checks: map[string]string{
			"api": "ok",
		},
	}

	return c.JSON(http.StatusOK, response)
}

// ReadinessHandler reports whether downstream dependencies are reachable
func ReadinessHandler(manager *classify.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		checks := map[string]string{
			"api": "ok",
		}

		if manager.IsHealthy() {
			checks["scorer"] = "ok"
		} else {
			// Classification degrades to conservative verdicts; the rest of
			// the service still works.
			checks["scorer"] = "unavailable"
		}

		return c.JSON(http.StatusOK, models.HealthResponse{
			Status:    "ready",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Uptime:    time.Since(startTime),
			Checks:    checks,
		})
	}
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// ScorerHealthHandler runs an on-demand health check against the scorer
func ScorerHealthHandler(manager *classify.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := "healthy"
		if err := manager.CheckHealth(c.Request().Context()); err != nil {
			status = "unhealthy"
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    status,
			"provider":  manager.GetProviderName(),
			"timestamp": time.Now(),
		})
	}
}
