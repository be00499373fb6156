// Package matches defines the match-history source consumed by the ranking
// engine and an in-memory implementation used by tests and the bundled server.
package matches

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/breakrack/rankd/internal/domain/model"
)

// Source provides completed-game records from match storage.
type Source interface {
	// ActiveUserIDs returns the ids of every player with at least one game
	// completed at or after since.
	ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)

	// CompletedGames returns every completed game userID appears in.
	// Players with no history yield an empty slice, not an error.
	CompletedGames(ctx context.Context, userID string) ([]model.Game, error)
}

// InMemorySource implements Source over an in-process game list.
type InMemorySource struct {
	mu    sync.RWMutex
	games []model.Game
	err   error
}

// Option applies a configuration option to the InMemorySource.
type Option func(*InMemorySource)

// WithGames seeds the source with completed games.
func WithGames(games ...model.Game) Option {
	return func(s *InMemorySource) {
		s.games = append(s.games, games...)
	}
}

// NewInMemorySource creates an in-memory match source with configuration options.
func NewInMemorySource(opts ...Option) *InMemorySource {
	s := &InMemorySource{}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Record appends completed games to the source.
func (s *InMemorySource) Record(games ...model.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = append(s.games, games...)
}

// Fail makes every subsequent call return err; nil restores normal operation.
func (s *InMemorySource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ActiveUserIDs returns players with a completed game at or after since,
// sorted ascending for deterministic iteration.
func (s *InMemorySource) ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, g := range s.games {
		if g.CompletedAt.Before(since) {
			continue
		}
		seen[g.WinnerID] = struct{}{}
		seen[g.LoserID] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// CompletedGames returns every game involving userID.
func (s *InMemorySource) CompletedGames(ctx context.Context, userID string) ([]model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	games := make([]model.Game, 0)
	for _, g := range s.games {
		if g.Involves(userID) {
			games = append(games, g)
		}
	}
	return games, nil
}
