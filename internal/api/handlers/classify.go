package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applytrack-utils/internal/classify"
	"applytrack-utils/internal/logging"
	"applytrack-utils/pkg/models"
	"applytrack-utils/pkg/utils"
)

// ClassifyHandler returns a single spam or compatibility verdict
func ClassifyHandler(service *classify.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		startTime := time.Now()
		requestID := utils.GenerateRequestID()
		logger := logging.LogWithRequestID(requestID)

		var req models.ClassifyRequest
		if err := c.Bind(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError("invalid request format"))
		}
		if err := validate.Struct(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError(err.Error()))
		}

		result, err := service.Classify(c.Request().Context(), req.UserID, req.JobID, req.Kind)
		if err != nil {
			logger.Error("Classification failed", map[string]interface{}{
				"user_id": req.UserID,
				"job_id":  req.JobID,
				"kind":    string(req.Kind),
				"error":   err.Error(),
			})
			return errorResponse(c, requestID, err)
		}

		return c.JSON(http.StatusOK, models.ClassifyResponse{
			Success:        true,
			Result:         result,
			ProcessingTime: time.Since(startTime),
			RequestID:      requestID,
		})
	}
}

// ClassifyBatchHandler classifies a set of jobs for one user
func ClassifyBatchHandler(service *classify.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		startTime := time.Now()
		requestID := utils.GenerateRequestID()
		logger := logging.LogWithRequestID(requestID)

		var req models.ClassifyBatchRequest
		if err := c.Bind(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError("invalid request format"))
		}
		if err := validate.Struct(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError(err.Error()))
		}

		result, err := service.ClassifyBatch(c.Request().Context(), req.UserID, req.JobIDs, req.Kind)
		if err != nil {
			logger.Error("Batch classification failed", map[string]interface{}{
				"user_id": req.UserID,
				"jobs":    len(req.JobIDs),
				"error":   err.Error(),
			})
			return errorResponse(c, requestID, err)
		}

		return c.JSON(http.StatusOK, models.ClassifyBatchResponse{
			Success:        true,
			Result:         result,
			ProcessingTime: time.Since(startTime),
			RequestID:      requestID,
		})
	}
}

// InvalidateCacheHandler clears cached verdicts for a user
func InvalidateCacheHandler(service *classify.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := logging.LogWithRequestID(requestID)

		var req models.InvalidateRequest
		if err := c.Bind(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError("invalid request format"))
		}
		if err := validate.Struct(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError(err.Error()))
		}

		if err := service.Invalidate(c.Request().Context(), req.UserID, req.JobIDs...); err != nil {
			logger.Error("Cache invalidation failed", map[string]interface{}{
				"user_id": req.UserID,
				"error":   err.Error(),
			})
			return errorResponse(c, requestID, err)
		}

		logger.Info("Cache invalidated", map[string]interface{}{
			"user_id": req.UserID,
			"jobs":    len(req.JobIDs),
		})

		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":    true,
			"request_id": requestID,
		})
	}
}
