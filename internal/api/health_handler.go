package api

import (
	"net/http"
	"time"

	"github.com/khunphaen/syncserver/internal/room"
)

// HealthHandler serves liveness and room-count status at GET /health.
type HealthHandler struct {
	registry *room.Registry
}

func NewHealthHandler(registry *room.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"rooms":     h.registry.Count(),
		"timestamp": time.Now().UTC(),
	})
}
