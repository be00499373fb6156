// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
)

// RefreshDependencies defines the interface for triggering a recompute.
type RefreshDependencies interface {
	UpdateGlobalRankings(ctx context.Context) error
}

// RefreshHandler handles manual recompute requests.
type RefreshHandler struct {
	deps RefreshDependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

// HandleRefresh handles POST /rankings/refresh requests. The cycle runs
// synchronously; a failure leaves the previous snapshot in place.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.UpdateGlobalRankings(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "recompute_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
