// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

const defaultNearbyRadius = 5

// PlayersDependencies defines the interface for per-player operations.
type PlayersDependencies interface {
	PlayerRankingDetails(ctx context.Context, userID string) Details
	NearbyRankings(ctx context.Context, userID string, radius int) ([]Entry, error)
}

// PlayersHandler handles per-player requests.
type PlayersHandler struct {
	deps PlayersDependencies
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps PlayersDependencies) *PlayersHandler {
	return &PlayersHandler{deps: deps}
}

// HandleGetPlayer handles GET /players/{user_id} and
// GET /players/{user_id}/nearby requests.
func (h *PlayersHandler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/players/")
	if path == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	if userID, ok := strings.CutSuffix(path, "/nearby"); ok {
		h.handleNearby(w, r, userID)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.PlayerRankingDetails(r.Context(), path))
}

func (h *PlayersHandler) handleNearby(w http.ResponseWriter, r *http.Request, userID string) {
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	radius := defaultNearbyRadius
	if raw := r.URL.Query().Get("radius"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		radius = n
	}
	entries, err := h.deps.NearbyRankings(r.Context(), userID, radius)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
