// Package wsload implements a load and consistency check against a running
// ranking service: it connects websocket clients, triggers a recompute, and
// verifies that broadcast updates agree with the HTTP rankings.
package wsload

import (
	"sync/atomic"
	"time"
)

// Config holds test configuration.
type Config struct {
	BaseURL  string        // HTTP base URL, e.g. http://localhost:9090
	WSURL    string        // websocket URL, e.g. ws://localhost:9090/ws
	Clients  int           // number of websocket clients to connect
	PerUser  int           // connections opened per synthetic user
	TopN     int           // leaderboard depth to verify
	Timeout  time.Duration // HTTP request timeout
	Duration time.Duration // how long clients stay connected
	Verbose  bool
}

// Stats accumulates test counters across goroutines.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time

	Connected       atomic.Int64
	Rejected        atomic.Int64
	EnvelopesRecv   atomic.Int64
	GlobalUpdates   atomic.Int64
	RankingUpdates  atomic.Int64
	SignificantRecv atomic.Int64
	DecodeErrors    atomic.Int64
}
