//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/devpulse/internal/ingest"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &ingest.ValidationError{Field: "userId", Reason: "is required"}, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("activity 2: %w", &ingest.ValidationError{Field: "filePath"}), http.StatusBadRequest},
		{"unauthenticated", ingest.ErrUnauthenticated, http.StatusUnauthorized},
		{"internal", &ingest.InternalError{Op: "session update", Err: errors.New("disk full")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if status == http.StatusInternalServerError && msg != "internal error" {
				t.Errorf("internal message leaked: %q", msg)
			}
		})
	}
}
