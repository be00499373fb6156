// Package repository holds the authoritative in-memory ranking state behind
// an atomically swapped snapshot.
package repository

import (
	"sort"
	"time"

	"github.com/breakrack/rankd/internal/domain/types"
)

// Snapshot is an immutable view of the ranking map and its derived order at
// a point in time. Builders prepare the whole snapshot before publishing, so
// readers never observe a partially updated view.
type Snapshot struct {
	entries    map[string]types.RankingEntry
	order      []string
	lastUpdate time.Time
}

// BuildSnapshot derives the rank order from the given entries and stamps
// 1-based ranks onto them. Ordering is rating descending with ties broken by
// user id ascending for determinism.
func BuildSnapshot(entries map[string]types.RankingEntry, at time.Time) *Snapshot {
	order := make([]string, 0, len(entries))
	for id := range entries {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := entries[order[i]], entries[order[j]]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.UserID < b.UserID
	})

	ranked := make(map[string]types.RankingEntry, len(entries))
	for i, id := range order {
		e := entries[id]
		e.Rank = i + 1
		ranked[id] = e
	}

	return &Snapshot{entries: ranked, order: order, lastUpdate: at}
}

// RestoreSnapshot rebuilds a snapshot from previously cached state without
// re-deriving ranks. The order slice is trusted as the cached rank order.
func RestoreSnapshot(entries map[string]types.RankingEntry, order []string, at time.Time) *Snapshot {
	copied := make(map[string]types.RankingEntry, len(entries))
	for id, e := range entries {
		copied[id] = e
	}
	return &Snapshot{
		entries:    copied,
		order:      append([]string(nil), order...),
		lastUpdate: at,
	}
}

// Entry returns the ranking entry for userID.
func (s *Snapshot) Entry(userID string) (types.RankingEntry, bool) {
	e, ok := s.entries[userID]
	return e, ok
}

// Entries returns the full user -> entry map. Callers must not mutate it.
func (s *Snapshot) Entries() map[string]types.RankingEntry {
	return s.entries
}

// Order returns the rank-ordered user ids. Callers must not mutate it.
func (s *Snapshot) Order() []string {
	return s.order
}

// Len returns the number of ranked players.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// LastUpdate returns when this snapshot was published.
func (s *Snapshot) LastUpdate() time.Time {
	return s.lastUpdate
}

// Range returns entries for ranks [startRank, endRank], both 1-based and
// inclusive, clamped to the snapshot bounds.
func (s *Snapshot) Range(startRank, endRank int) []types.RankingEntry {
	if startRank < 1 {
		startRank = 1
	}
	if endRank > len(s.order) {
		endRank = len(s.order)
	}
	if startRank > endRank {
		return []types.RankingEntry{}
	}

	out := make([]types.RankingEntry, 0, endRank-startRank+1)
	for i := startRank - 1; i < endRank; i++ {
		out = append(out, s.entries[s.order[i]])
	}
	return out
}
