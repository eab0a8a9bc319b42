package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse reports backend reachability.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Bus    string `json:"bus"`
}

// Health checks the row store and the event bus.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Store: "ok", Bus: "ok"}
	status := http.StatusOK

	if err := h.pg.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Store = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.bus.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Bus = err.Error()
		status = http.StatusServiceUnavailable
	}

	h.JSON(w, status, resp)
}
