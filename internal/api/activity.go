package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/devpulse/internal/domain"
	"github.com/ashureev/devpulse/internal/identity"
	"github.com/ashureev/devpulse/internal/ingest"
)

const (
	maxActivityBody = 64 << 10 // 64KB
	maxBatchBody    = 8 << 20  // 8MB
	maxListLimit    = 500
)

// ActivityHandler serves ingestion and the per-user read views.
type ActivityHandler struct {
	*Handler
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(base *Handler) *ActivityHandler {
	return &ActivityHandler{Handler: base}
}

// RegisterRoutes registers activity routes.
func (h *ActivityHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/activities", h.CreateActivity)
		r.Post("/activities/batch", h.ProcessBatch)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/activities", h.ListActivities)
			r.Get("/sessions", h.ListSessions)
			r.Get("/stats", h.GetStats)
		})
	})
}

// CreateActivity stores one activity and runs it through the single-event
// path, returning the annotated record.
func (h *ActivityHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxActivityBody))
	if err != nil {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	a, err := ingest.DecodeActivity(body)
	if err != nil {
		ingestError(w, r, err)
		return
	}
	if a.UserID != userID {
		Error(w, http.StatusForbidden, "userId must match the authenticated caller")
		return
	}

	// Record IDs are always assigned by the server on this path.
	a.ID = ""
	stored, err := h.dispatcher.Submit(r.Context(), a)
	if err != nil {
		ingestError(w, r, err)
		return
	}

	JSON(w, http.StatusCreated, stored)
}

// ProcessBatch stores a list of annotated activities in one write.
func (h *ActivityHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBody))
	if err != nil {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	res, err := h.dispatcher.ProcessBatch(r.Context(), userID, body)
	if err != nil {
		status, _ := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.Error("Batch ingestion failed", "user_id", userID, "error", err)
		}
		JSON(w, status, res)
		return
	}

	JSON(w, http.StatusOK, res)
}

// ListActivities returns the caller's most recent activities.
func (h *ActivityHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r)
	if !ok {
		return
	}

	list, err := h.repo.ListRecentActivities(r.Context(), userID, limitParam(r, 50))
	if err != nil {
		slog.Error("Failed to list activities", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list activities")
		return
	}
	if list == nil {
		list = []*domain.Activity{}
	}
	JSON(w, http.StatusOK, list)
}

// ListSessions returns the caller's sessions, latest first.
func (h *ActivityHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r)
	if !ok {
		return
	}

	list, err := h.repo.ListUserSessions(r.Context(), userID, limitParam(r, 20))
	if err != nil {
		slog.Error("Failed to list sessions", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if list == nil {
		list = []*domain.Session{}
	}
	JSON(w, http.StatusOK, list)
}

// GetStats returns the caller's statistics document.
func (h *ActivityHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r)
	if !ok {
		return
	}

	stats, err := h.repo.GetUserStats(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load user stats", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	if stats == nil {
		Error(w, http.StatusNotFound, "no stats for user")
		return
	}
	JSON(w, http.StatusOK, stats)
}

// ownUser returns the path user if it is the caller.
func (h *ActivityHandler) ownUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := identity.UserIDFromContext(r.Context())
	if caller == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	userID := chi.URLParam(r, "userID")
	if userID != caller {
		Error(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return userID, true
}

func limitParam(r *http.Request, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
