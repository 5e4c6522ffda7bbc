package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applytrack-utils/pkg/models"
	"applytrack-utils/pkg/utils"
)

// errorResponse maps domain errors onto HTTP responses. CustomError carries
// its own status code; anything else is an internal error.
func errorResponse(c echo.Context, requestID string, err error) error {
	status := http.StatusInternalServerError
	label := "internal_error"

	var custom *utils.CustomError
	if errors.As(err, &custom) {
		status = custom.Code
		switch {
		case utils.IsValidationError(err):
			label = "validation_failed"
		case utils.IsNotFoundError(err):
			label = "not_found"
		case utils.IsConflictError(err):
			label = "conflict"
		case utils.IsScorerError(err):
			label = "scorer_unavailable"
		}
	}

	return c.JSON(status, models.ErrorResponse{
		Error:     label,
		Message:   err.Error(),
		RequestID: requestID,
		Timestamp: time.Now(),
	})
}
