package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/txn2/configs-api/pkg/configs"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, configs.ErrInvalidName),
		errors.Is(err, configs.ErrInvalidDocument),
		errors.Is(err, configs.ErrMalformedQuery):
		return http.StatusBadRequest
	case errors.Is(err, configs.ErrNameAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, configs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, configs.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Server-side failures
// are logged and reported without internal detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusServiceUnavailable:
		slog.Error("config store unavailable", "path", r.URL.Path, "request_id", GetRequestID(r.Context()), "error", err)
		writeError(w, status, configs.ErrStoreUnavailable.Error())
	case http.StatusInternalServerError:
		slog.Error("config request failed", "path", r.URL.Path, "request_id", GetRequestID(r.Context()), "error", err)
		writeError(w, status, "internal error")
	default:
		writeError(w, status, err.Error())
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
