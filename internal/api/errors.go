package api

import (
	"errors"
	"net/http"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrFileNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrResourceExhausted):
		return http.StatusTooManyRequests

	case errors.Is(err, domain.ErrCacheUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message based
// on the error type. Internal detail stays in the logs.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		// Validation detail is derived from client input and safe to echo.
		return err.Error()

	case errors.Is(err, domain.ErrNotFound):
		return "Request not found"

	case errors.Is(err, domain.ErrResourceExhausted):
		return "Processing queue is at capacity, retry later"

	case errors.Is(err, domain.ErrCacheUnavailable):
		return "Status store is temporarily unavailable"

	case errors.Is(err, domain.ErrTimeout):
		return "Processing timed out"

	default:
		return "An unexpected error occurred"
	}
}
