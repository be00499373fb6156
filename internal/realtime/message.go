// Package realtime tracks live client connections and pushes ranking
// updates to them.
package realtime

import (
	"context"
	"time"

	"github.com/breakrack/rankd/internal/domain/types"
)

// MessageType tags an outbound message envelope.
type MessageType string

// The closed set of outbound message kinds.
const (
	MessageRankingUpdate     MessageType = "ranking_update"
	MessageGlobalUpdate      MessageType = "global_update"
	MessageSignificantChange MessageType = "significant_change"
)

// Envelope is the wire shape of every outbound message.
type Envelope struct {
	Type      MessageType `json:"type"`
	Data      any         `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// GlobalUpdate is the payload of a global_update message.
type GlobalUpdate struct {
	Rankings []types.RankingEntry `json:"rankings"`
	Total    int                  `json:"total"`
}

// RankChange is the payload of a significant_change message. Change is
// positive when the player climbed.
type RankChange struct {
	OldRank int `json:"old_rank"`
	NewRank int `json:"new_rank"`
	Change  int `json:"change"`
}

// Conn is one live client handle registered with the Registry. Implementations
// must preserve per-handle send ordering.
type Conn interface {
	// ID identifies the handle within its user's set.
	ID() string

	// Send delivers one serialized message, honoring ctx for cancellation.
	Send(ctx context.Context, payload []byte) error

	// Close tears the connection down.
	Close() error
}
