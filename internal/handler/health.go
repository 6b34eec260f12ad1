package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/capitalize-ai/project-onboarding/internal/probe"
)

// Pinger reports reachability of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store  Pinger
	events Pinger
	probe  *probe.Probe
}

// NewHealthHandler creates a new health handler. events and p may be nil.
func NewHealthHandler(store Pinger, events Pinger, p *probe.Probe) *HealthHandler {
	return &HealthHandler{
		store:  store,
		events: events,
		probe:  p,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. AI availability is reported but never blocks
// readiness; projects are still created without it.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "storage unavailable",
		})
		return
	}

	if h.events != nil {
		if err := h.events.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "event stream unavailable",
			})
			return
		}
	}

	resp := map[string]any{"status": "ready"}
	if h.probe != nil {
		if st, ok := h.probe.Cached(); ok {
			resp["ai_available"] = st.Available
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
