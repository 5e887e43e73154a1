package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"spendtrend/internal/config"
)

// HealthResponse is the body of the health endpoints
type HealthResponse struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Uptime     string    `json:"uptime"`
	HasResults bool      `json:"has_results"`
	RunID      string    `json:"run_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store   *ResultStore
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store *ResultStore) *HealthHandler {
	return &HealthHandler{store: store, started: time.Now()}
}

func (h *HealthHandler) response(status string) HealthResponse {
	resp := HealthResponse{
		Status:    status,
		Version:   config.AppVersion,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
	if out, ok := h.store.Latest(); ok {
		resp.HasResults = true
		resp.RunID = out.RunID
	}
	return resp
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.response("ok"))
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	resp := h.response("ready")
	if !resp.HasResults {
		resp.Status = "waiting_for_results"
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
