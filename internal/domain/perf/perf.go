// Package perf derives normalized secondary performance metrics from
// game history.
package perf

import (
	"time"

	"github.com/breakrack/rankd/internal/domain/model"
	"github.com/breakrack/rankd/internal/domain/types"
)

// Default metric normalization constants.
const (
	defaultRecentWindow     = 30 * 24 * time.Hour
	defaultConsistencyGames = 20            // games per window for full consistency
	defaultSpeedCeiling     = time.Hour     // games at or above this score zero speed
	defaultStrategyDepth    = 10            // placements past this score zero strategy
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRecentWindow sets the window used for the consistency metric.
func WithRecentWindow(w time.Duration) Option {
	return func(e *Engine) {
		if w > 0 {
			e.recentWindow = w
		}
	}
}

// WithConsistencyGames sets how many recent games count as fully consistent.
func WithConsistencyGames(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.consistencyGames = n
		}
	}
}

// WithSpeedCeiling sets the duration at which the speed metric bottoms out.
func WithSpeedCeiling(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.speedCeiling = d
		}
	}
}

// WithClock sets the time source, used by tests for deterministic windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine computes [0,1] performance metrics for a player. A player with no
// history gets all-zero metrics rather than an error, so detail views
// degrade gracefully.
type Engine struct {
	recentWindow     time.Duration
	consistencyGames int
	speedCeiling     time.Duration
	strategyDepth    int
	now              func() time.Time
}

// New creates an Engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		recentWindow:     defaultRecentWindow,
		consistencyGames: defaultConsistencyGames,
		speedCeiling:     defaultSpeedCeiling,
		strategyDepth:    defaultStrategyDepth,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Compute derives the four metrics from userID's completed games.
func (e *Engine) Compute(userID string, games []model.Game) types.PerformanceMetrics {
	involved := make([]model.Game, 0, len(games))
	for _, g := range games {
		if g.Involves(userID) {
			involved = append(involved, g)
		}
	}
	if len(involved) == 0 {
		return types.PerformanceMetrics{}
	}

	var m types.PerformanceMetrics

	// Accuracy tracks the overall win rate.
	wins := 0
	for _, g := range involved {
		if g.WinnerID == userID {
			wins++
		}
	}
	m.Accuracy = float64(wins) / float64(len(involved))

	// Consistency tracks recent activity against the full-consistency target.
	cutoff := e.now().Add(-e.recentWindow)
	recent := 0
	for _, g := range involved {
		if g.CompletedAt.After(cutoff) {
			recent++
		}
	}
	m.Consistency = clamp01(float64(recent) / float64(e.consistencyGames))

	// Speed is inversely proportional to the average game duration.
	var durations time.Duration
	timed := 0
	for _, g := range involved {
		if g.Duration > 0 {
			durations += g.Duration
			timed++
		}
	}
	if timed > 0 {
		avg := durations / time.Duration(timed)
		m.Speed = 1 - clamp01(float64(avg)/float64(e.speedCeiling))
	}

	// Strategy rewards low average tournament placement.
	placements := 0
	placementSum := 0
	for _, g := range involved {
		if g.Placement >= 1 {
			placements++
			placementSum += g.Placement
		}
	}
	if placements > 0 {
		avg := float64(placementSum) / float64(placements)
		m.Strategy = 1 - clamp01((avg-1)/float64(e.strategyDepth))
	}

	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
