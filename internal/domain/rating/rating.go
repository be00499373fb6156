// Package rating computes Elo-style skill ratings from completed game history.
package rating

import (
	"math"
	"sort"
	"time"

	"github.com/breakrack/rankd/internal/domain/model"
)

// Default rating configuration constants.
const (
	defaultKFactor       = 32
	defaultInitialRating = 1000
	defaultMinimumRating = 100
	eloDivisor           = 400
)

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithKFactor sets the Elo K constant applied per game.
func WithKFactor(k float64) Option {
	return func(c *Calculator) {
		if k > 0 {
			c.kFactor = k
		}
	}
}

// WithInitialRating sets the starting rating for unknown players.
func WithInitialRating(r float64) Option {
	return func(c *Calculator) {
		if r > 0 {
			c.initialRating = r
		}
	}
}

// WithMinimumRating sets the rating floor.
func WithMinimumRating(r float64) Option {
	return func(c *Calculator) {
		if r >= 0 {
			c.minimumRating = r
		}
	}
}

// Lookup resolves another player's rating at computation time. The second
// return reports whether a rating was known; unknown opponents are treated
// as holding the initial rating.
type Lookup func(userID string) (float64, bool)

// Calculator folds match history through the Elo recurrence.
// It is pure: all inputs arrive as arguments and no I/O happens here.
type Calculator struct {
	kFactor       float64
	initialRating float64
	minimumRating float64
}

// New creates a Calculator with configuration options.
func New(opts ...Option) *Calculator {
	c := &Calculator{
		kFactor:       defaultKFactor,
		initialRating: defaultInitialRating,
		minimumRating: defaultMinimumRating,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// InitialRating returns the default rating assigned to new players.
func (c *Calculator) InitialRating() float64 { return c.initialRating }

// MinimumRating returns the rating floor.
func (c *Calculator) MinimumRating() float64 { return c.minimumRating }

// Expected returns the logistic expected score of a player rated a against
// an opponent rated b.
func (c *Calculator) Expected(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/eloDivisor))
}

// Rating computes userID's rating by applying every completed game in
// chronological order, starting from the previous rating when the lookup
// knows one, and clamps the result to the configured floor.
func (c *Calculator) Rating(userID string, games []model.Game, opponents Lookup) float64 {
	current := c.initialRating
	if opponents != nil {
		if prev, ok := opponents(userID); ok {
			current = prev
		}
	}

	for _, g := range chronological(userID, games) {
		opponent := g.OpponentOf(userID)
		if opponent == "" {
			continue
		}

		opponentRating := c.initialRating
		if opponents != nil {
			if r, ok := opponents(opponent); ok {
				opponentRating = r
			}
		}

		actual := 0.0
		if g.WinnerID == userID {
			actual = 1.0
		}
		current += c.kFactor * (actual - c.Expected(current, opponentRating))
	}

	return math.Max(current, c.minimumRating)
}

// WinRate returns wins / total games for userID, or 0 with no history.
func (c *Calculator) WinRate(userID string, games []model.Game) float64 {
	total := 0
	wins := 0
	for _, g := range games {
		if !g.Involves(userID) {
			continue
		}
		total++
		if g.WinnerID == userID {
			wins++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// TournamentPerformance returns a placement-weighted score over userID's
// tournament games. Lower placements weigh more (1st = 1.0, 2nd = 0.5, ...)
// so the score is strictly positive whenever at least one result exists.
func (c *Calculator) TournamentPerformance(userID string, games []model.Game) float64 {
	total := 0.0
	count := 0
	for _, g := range games {
		if !g.Involves(userID) || g.Placement < 1 {
			continue
		}
		total += 1 / float64(g.Placement)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// Summary aggregates the bookkeeping counters derived from game history.
type Summary struct {
	GamesPlayed int
	Wins        int
	Losses      int
	Streak      int // positive = win streak, negative = loss streak
	LastGame    *time.Time
}

// Summarize walks userID's games in chronological order and derives the
// played/won/lost counters, the signed streak, and the last game timestamp.
func Summarize(userID string, games []model.Game) Summary {
	var s Summary
	for _, g := range chronological(userID, games) {
		s.GamesPlayed++
		if g.WinnerID == userID {
			s.Wins++
			if s.Streak > 0 {
				s.Streak++
			} else {
				s.Streak = 1
			}
		} else {
			s.Losses++
			if s.Streak < 0 {
				s.Streak--
			} else {
				s.Streak = -1
			}
		}
		at := g.CompletedAt
		s.LastGame = &at
	}
	return s
}

// chronological filters games down to those involving userID and orders them
// oldest first, which the Elo recurrence requires.
func chronological(userID string, games []model.Game) []model.Game {
	involved := make([]model.Game, 0, len(games))
	for _, g := range games {
		if g.Involves(userID) {
			involved = append(involved, g)
		}
	}
	sort.SliceStable(involved, func(i, j int) bool {
		return involved[i].CompletedAt.Before(involved[j].CompletedAt)
	})
	return involved
}
