package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// CustomError represents a custom application error
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *CustomError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Common error constructors

func NewValidationError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: "Validation failed",
		Detail:  detail,
	}
}

func NewNotFoundError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusNotFound,
		Message: "Not found",
		Detail:  detail,
	}
}

func NewConflictError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusConflict,
		Message: "Conflict",
		Detail:  detail,
	}
}

func NewInternalServerError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusInternalServerError,
		Message: message,
	}
}

// NewScorerError returns an error for a failed external scorer call
// (timeout, malformed response, quota).
func NewScorerError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadGateway,
		Message: "Scorer call failed",
		Detail:  detail,
	}
}

// Predicates for callers that branch on the error class.

func IsValidationError(err error) bool { return hasCode(err, http.StatusBadRequest) }
func IsNotFoundError(err error) bool   { return hasCode(err, http.StatusNotFound) }
func IsConflictError(err error) bool   { return hasCode(err, http.StatusConflict) }
func IsScorerError(err error) bool     { return hasCode(err, http.StatusBadGateway) }

func hasCode(err error, code int) bool {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
