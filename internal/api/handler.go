// Package api provides HTTP handlers for the devpulse API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/devpulse/internal/ingest"
	"github.com/ashureev/devpulse/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo       store.Repository
	dispatcher *ingest.Dispatcher
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, dispatcher *ingest.Dispatcher) *Handler {
	return &Handler{
		repo:       repo,
		dispatcher: dispatcher,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// statusFor maps an ingestion error to an HTTP status and a client-safe
// message. Internal causes are never exposed.
func statusFor(err error) (int, string) {
	var ve *ingest.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, ingest.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// ingestError writes err using statusFor, logging anything unexpected.
func ingestError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	Error(w, status, msg)
}
