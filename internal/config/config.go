// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file/env on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// TierConfig describes one named skill bracket. Tiers are evaluated from the
// highest MinRating down; the first tier whose MinRating is at or below the
// rating wins.
type TierConfig struct {
	Name      string  `koanf:"name"`
	Icon      string  `koanf:"icon"`
	Color     string  `koanf:"color"`
	MinRating float64 `koanf:"min_rating"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// UpdateIntervalSeconds sets the period of the global recompute loop.
	UpdateIntervalSeconds int `koanf:"update_interval_seconds"`

	// ActiveWindowDays bounds which players count as active for ranking.
	ActiveWindowDays int `koanf:"active_window_days"`

	// KFactor is the Elo K constant applied per game.
	KFactor float64 `koanf:"k_factor"`

	// InitialRating is the default rating for new or unrankable players.
	InitialRating float64 `koanf:"initial_rating"`

	// MinimumRating is the rating floor every computed rating is clamped to.
	MinimumRating float64 `koanf:"minimum_rating"`

	// SignificanceThreshold is the minimum rank movement that triggers a
	// significant-change notification.
	SignificanceThreshold int `koanf:"significance_threshold"`

	// MaxConnectionsPerUser caps concurrent handles registered per user.
	MaxConnectionsPerUser int `koanf:"max_connections_per_user"`

	// MaxTotalConnections caps concurrent handles across all users.
	MaxTotalConnections int `koanf:"max_total_connections"`

	// SnapshotTTLSeconds is the TTL applied to cached ranking snapshots.
	SnapshotTTLSeconds int `koanf:"snapshot_ttl_seconds"`

	// Redis connection settings for the external cache. An empty RedisAddr
	// disables Redis and falls back to the in-process cache.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// Tiers is the ordered tier list, highest threshold first.
	Tiers []TierConfig `koanf:"tiers"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9090",
		UpdateIntervalSeconds: 300,
		ActiveWindowDays:      30,
		KFactor:               32,
		InitialRating:         1000,
		MinimumRating:         100,
		SignificanceThreshold: 5,
		MaxConnectionsPerUser: 5,
		MaxTotalConnections:   1000,
		SnapshotTTLSeconds:    300,
		RedisAddr:             "",
		RedisDB:               0,
		Tiers: []TierConfig{
			{Name: "Pool God", Icon: "crown", Color: "#ffd700", MinRating: 2500},
			{Name: "Master", Icon: "diamond", Color: "#b9f2ff", MinRating: 2000},
			{Name: "Expert", Icon: "star", Color: "#c0c0c0", MinRating: 1500},
			{Name: "Intermediate", Icon: "cue", Color: "#cd7f32", MinRating: 1000},
			{Name: "Novice", Icon: "chalk", Color: "#8b8b8b", MinRating: 0},
		},
	}
}

// UpdateInterval returns the recompute period as a duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

// SnapshotTTL returns the cache TTL as a duration.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSeconds) * time.Second
}

// ActiveWindow returns the activity cutoff window as a duration.
func (c *Config) ActiveWindow() time.Duration {
	return time.Duration(c.ActiveWindowDays) * 24 * time.Hour
}
