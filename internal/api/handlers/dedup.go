package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"applytrack-utils/internal/dedup"
	"applytrack-utils/internal/logging"
	"applytrack-utils/pkg/models"
	"applytrack-utils/pkg/utils"
)

var validate = validator.New()

// DedupRunHandler triggers a deduplication sweep for one user
func DedupRunHandler(engine *dedup.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := logging.LogWithRequestID(requestID)

		var req models.DedupRunRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "invalid_request",
				Message:   "Invalid request format",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}
		if err := validate.Struct(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "validation_failed",
				Message:   err.Error(),
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		logger.Info("Deduplication sweep requested", map[string]interface{}{
			"user_id": req.UserID,
		})

		result, err := engine.DetectDuplicates(c.Request().Context(), req.UserID)
		if err != nil {
			logger.Error("Deduplication sweep failed", map[string]interface{}{
				"user_id": req.UserID,
				"error":   err.Error(),
			})
			return errorResponse(c, requestID, err)
		}

		return c.JSON(http.StatusOK, models.DedupRunResponse{
			Success:   true,
			Result:    result,
			RequestID: requestID,
		})
	}
}

// JobDuplicatesHandler returns the duplicate family for a job
func JobDuplicatesHandler(engine *dedup.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()

		jobID := c.Param("id")
		userID := c.QueryParam("user_id")
		if userID == "" {
			return errorResponse(c, requestID, utils.NewValidationError("user_id query parameter is required"))
		}

		family, err := engine.GetDuplicatesForJob(c.Request().Context(), jobID, userID)
		if err != nil {
			return errorResponse(c, requestID, err)
		}

		return c.JSON(http.StatusOK, family)
	}
}

// MergeHandler records a manual duplicate confirmation
func MergeHandler(engine *dedup.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := logging.LogWithRequestID(requestID)

		var req models.MergeRequest
		if err := c.Bind(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError("invalid request format"))
		}
		if err := validate.Struct(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError(err.Error()))
		}

		if err := engine.MergeManually(c.Request().Context(), req.CanonicalJobID, req.DuplicateJobID, req.UserID); err != nil {
			logger.Error("Manual merge failed", map[string]interface{}{
				"canonical_job_id": req.CanonicalJobID,
				"duplicate_job_id": req.DuplicateJobID,
				"error":            err.Error(),
			})
			return errorResponse(c, requestID, err)
		}

		logger.Info("Manual merge recorded", map[string]interface{}{
			"canonical_job_id": req.CanonicalJobID,
			"duplicate_job_id": req.DuplicateJobID,
		})

		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":    true,
			"request_id": requestID,
		})
	}
}

// UnlinkHandler removes a duplicate relationship
func UnlinkHandler(engine *dedup.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := logging.LogWithRequestID(requestID)

		var req models.UnlinkRequest
		if err := c.Bind(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError("invalid request format"))
		}
		if err := validate.Struct(&req); err != nil {
			return errorResponse(c, requestID, utils.NewValidationError(err.Error()))
		}

		if err := engine.Unlink(c.Request().Context(), req.CanonicalJobID, req.DuplicateJobID, req.UserID); err != nil {
			logger.Error("Unlink failed", map[string]interface{}{
				"canonical_job_id": req.CanonicalJobID,
				"duplicate_job_id": req.DuplicateJobID,
				"error":            err.Error(),
			})
			return errorResponse(c, requestID, err)
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":    true,
			"request_id": requestID,
		})
	}
}

// JobListHandler returns a paginated canonical-only job listing
func JobListHandler(engine *dedup.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()

		userID := c.QueryParam("user_id")
		if userID == "" {
			return errorResponse(c, requestID, utils.NewValidationError("user_id query parameter is required"))
		}

		page, _ := strconv.Atoi(c.QueryParam("page"))
		pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
		page, pageSize = dedup.ClampPaging(page, pageSize)

		jobs, err := engine.ListCanonicalOnly(c.Request().Context(), userID, page, pageSize)
		if err != nil {
			return errorResponse(c, requestID, err)
		}

		return c.JSON(http.StatusOK, models.JobListResponse{
			Jobs:     jobs,
			Page:     page,
			PageSize: pageSize,
		})
	}
}
