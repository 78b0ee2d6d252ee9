package handler

import (
	"net/http"
	"time"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "marketstream"

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	now func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{now: time.Now}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET / and GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   ServiceName,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
