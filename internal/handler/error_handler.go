package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/streampainel/campaign-backend/internal/models"
)

// handleError maps service errors to HTTP responses
func handleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		status := mapErrorCodeToHTTPStatus(appErr.Code)
		respondError(w, status, appErr.Code, appErr.Message)
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())

	case errors.Is(err, models.ErrStateConflict):
		respondError(w, http.StatusConflict, "STATE_CONFLICT", err.Error())

	case errors.Is(err, models.ErrInstanceDisconnected):
		respondError(w, http.StatusConflict, "INSTANCE_DISCONNECTED", err.Error())

	default:
		// Log internal errors but don't expose details to client
		logger.Error("internal server error",
			slog.String("error", err.Error()),
		)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

// mapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func mapErrorCodeToHTTPStatus(code string) int {
	switch code {
	case "INVALID_INPUT":
		return http.StatusBadRequest
	case "NOT_FOUND":
		return http.StatusNotFound
	case "STATE_CONFLICT", "INSTANCE_DISCONNECTED":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
