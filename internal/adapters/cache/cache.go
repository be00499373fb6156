// Package cache defines the external cache contract used for ranking and
// stats snapshots, with Redis and in-memory implementations.
package cache

import (
	"context"
	"time"
)

// Well-known cache keys.
const (
	KeyRankings   = "rankings"
	KeyRankOrder  = "rank_order"
	KeyLastUpdate = "last_update"
	KeyStats      = "connection_stats"
)

// Cache stores JSON-serializable snapshots with a TTL. Implementations are
// eventually consistent: a stale read is acceptable and surfaces as a
// recompute upstream.
type Cache interface {
	// Get retrieves and deserializes the value at key into dest.
	// Returns ErrCacheMiss when the key does not exist.
	Get(ctx context.Context, key string, dest any) error

	// Set serializes value and stores it under key with the given TTL.
	// A zero TTL stores without expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Close releases any underlying resources.
	Close() error
}
