// Package types contains common types used across the application
package types

import "time"

// RankingEntry is one player's row in the global ranking.
type RankingEntry struct {
	UserID      string     `json:"user_id"`
	Rating      float64    `json:"rating"`
	Rank        int        `json:"rank"`
	Change24h   float64    `json:"change_24h"`
	GamesPlayed int        `json:"games_played"`
	Wins        int        `json:"wins"`
	Losses      int        `json:"losses"`
	Streak      int        `json:"streak"`
	LastGame    *time.Time `json:"last_game,omitempty"`
	Title       string     `json:"title"`
}

// PerformanceMetrics are normalized [0,1] secondary metrics derived from
// recent game history.
type PerformanceMetrics struct {
	Accuracy    float64 `json:"accuracy"`
	Consistency float64 `json:"consistency"`
	Speed       float64 `json:"speed"`
	Strategy    float64 `json:"strategy"`
}

// RankingDetails is the full detail view for a single player.
type RankingDetails struct {
	RankingEntry
	WinRate              float64            `json:"win_rate"`
	TournamentWins       int                `json:"tournament_wins"`
	TournamentPlacements []int              `json:"tournament_placements"`
	Performance          PerformanceMetrics `json:"performance_metrics"`
}
