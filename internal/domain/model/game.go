// Package model contains domain models passed between layers.
package model

import "time"

// Game represents one completed game pulled from match storage.
// Placement is only set for tournament games; zero means a casual game.
type Game struct {
	WinnerID    string        // winner identifier
	LoserID     string        // loser identifier
	CompletedAt time.Time     // completion timestamp
	Duration    time.Duration // wall time of the game, zero when unknown
	Placement   int           // tournament placement of the subject player, 1 = first
}

// Involves reports whether userID appears on either side of the game.
func (g Game) Involves(userID string) bool {
	return g.WinnerID == userID || g.LoserID == userID
}

// OpponentOf returns the other player's id, or "" when userID did not play.
func (g Game) OpponentOf(userID string) string {
	switch userID {
	case g.WinnerID:
		return g.LoserID
	case g.LoserID:
		return g.WinnerID
	default:
		return ""
	}
}
