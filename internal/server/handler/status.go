package handler

import (
	"net/http"
)

// Counter reports a size.
type Counter func() int

// StatusHandler serves the backend status for dashboards.
type StatusHandler struct {
	Mode           string
	Clients        Counter
	TrackedMarkets Counter
	CatalogSize    Counter
}

// NewStatusHandler creates a StatusHandler. Nil counters report zero.
func NewStatusHandler(mode string, clients, tracked, catalogSize Counter) *StatusHandler {
	return &StatusHandler{
		Mode:           mode,
		Clients:        clients,
		TrackedMarkets: tracked,
		CatalogSize:    catalogSize,
	}
}

func (c Counter) value() int {
	if c == nil {
		return 0
	}
	return c()
}

// GetStatus responds with the mode and live counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":            h.Mode,
		"clients":         h.Clients.value(),
		"tracked_markets": h.TrackedMarkets.value(),
		"catalog_size":    h.CatalogSize.value(),
	})
}
