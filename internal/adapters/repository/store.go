package repository

import (
	"sync"
	"time"

	"github.com/breakrack/rankd/internal/domain/types"
)

// Store publishes ranking snapshots to concurrent readers. Writers build a
// complete snapshot off to the side and install it with a single pointer
// swap, so no lock is held across I/O and no reader ever sees a mix of two
// recompute cycles.
type Store struct {
	mu      sync.RWMutex
	current *Snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		current: BuildSnapshot(map[string]types.RankingEntry{}, time.Time{}),
	}
}

// Swap atomically publishes a new snapshot.
func (s *Store) Swap(next *Snapshot) {
	if next == nil {
		return
	}
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

// Current returns the published snapshot. The snapshot itself is immutable;
// readers hold a cheap reference instead of locking for the read's duration.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Entry returns the published entry for userID.
func (s *Store) Entry(userID string) (types.RankingEntry, error) {
	e, ok := s.Current().Entry(userID)
	if !ok {
		return types.RankingEntry{}, ErrNotFound
	}
	return e, nil
}

// Range returns entries for ranks [startRank, endRank] from the published
// snapshot.
func (s *Store) Range(startRank, endRank int) []types.RankingEntry {
	return s.Current().Range(startRank, endRank)
}

// Nearby returns the entries within radius ranks of userID's rank.
func (s *Store) Nearby(userID string, radius int) ([]types.RankingEntry, error) {
	snap := s.Current()
	e, ok := snap.Entry(userID)
	if !ok {
		return nil, ErrNotFound
	}
	if radius < 0 {
		radius = 0
	}
	return snap.Range(e.Rank-radius, e.Rank+radius), nil
}

// Upsert replaces or inserts a single entry and republishes the snapshot
// with ranks rebuilt. Used by on-demand single-player recomputes; the full
// periodic cycle goes through Swap instead.
func (s *Store) Upsert(entry types.RankingEntry, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(map[string]types.RankingEntry, s.current.Len()+1)
	for id, e := range s.current.entries {
		entries[id] = e
	}
	entries[entry.UserID] = entry
	s.current = BuildSnapshot(entries, at)
}

// Count returns the number of ranked players in the published snapshot.
func (s *Store) Count() int {
	return s.Current().Len()
}

// LastUpdate returns the publish time of the current snapshot.
func (s *Store) LastUpdate() time.Time {
	return s.Current().LastUpdate()
}
