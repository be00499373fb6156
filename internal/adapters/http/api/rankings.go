// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"
)

// Default bounds for ranking range queries.
const (
	defaultMaxRange = 500
	defaultTopLimit = 100
)

// RankingsDependencies defines the interface for ranking list operations.
type RankingsDependencies interface {
	RankingsInRange(ctx context.Context, startRank, endRank int) []Entry
	TopRankings(ctx context.Context, limit int) []Entry
}

// RankingsHandler handles ranking list requests.
type RankingsHandler struct {
	deps     RankingsDependencies
	maxRange int
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps RankingsDependencies, maxRange int) *RankingsHandler {
	return &RankingsHandler{
		deps:     deps,
		maxRange: maxRange,
	}
}

// HandleGetRange handles GET /rankings?start=N&end=M requests. Ranks are
// 1-based and the range is inclusive.
func (h *RankingsHandler) HandleGetRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	start, err := strconv.Atoi(r.URL.Query().Get("start"))
	if err != nil || start < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	end, err := strconv.Atoi(r.URL.Query().Get("end"))
	if err != nil || end < start {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if end-start+1 > h.maxRange {
		writeError(w, http.StatusBadRequest, "range_exceeded", ErrBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.RankingsInRange(r.Context(), start, end))
}

// HandleGetTop handles GET /rankings/top?limit=N requests.
func (h *RankingsHandler) HandleGetTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > h.maxRange {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.deps.TopRankings(r.Context(), limit))
}
