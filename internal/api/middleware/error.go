// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/logger"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteErrorWithDetails(w, status, errCode, message, nil)
}

// WriteErrorWithDetails writes a JSON error response with additional details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, errCode, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
		Details: details,
	})
}

// WriteServiceError maps an error from the sync or review pipeline to its
// status code and error kind. Internal errors are logged and their text is
// not exposed.
func WriteServiceError(w http.ResponseWriter, err error) {
	kind := flight.Kind(err)
	switch kind {
	case flight.KindNotFound:
		WriteError(w, http.StatusNotFound, kind, err.Error())
	case flight.KindValidation, flight.KindResolutionFailed:
		WriteError(w, http.StatusUnprocessableEntity, kind, err.Error())
	case flight.KindFetch:
		WriteError(w, http.StatusBadGateway, kind, err.Error())
	default:
		logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
	}
}

// ErrorRecovery is middleware that recovers from panics and returns a 500 error.
func ErrorRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "error", err, "path", r.URL.Path, "stack", string(debug.Stack()))
				WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Common error codes
const (
	ErrNotFound      = flight.KindNotFound
	ErrBadRequest    = "bad_request"
	ErrInternalError = flight.KindInternal
	ErrValidation    = flight.KindValidation
	ErrUnauthorized  = "unauthorized"
)
