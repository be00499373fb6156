package realtime

import (
	"context"
	"time"

	"github.com/breakrack/rankd/internal/adapters/cache"
	"github.com/breakrack/rankd/pkg/logger"
	"github.com/breakrack/rankd/pkg/metrics"
)

// StatsSnapshot is the point-in-time view of registry counters. Peak never
// decreases on disconnect; it is a high-water mark.
type StatsSnapshot struct {
	TotalConnections   int        `json:"total_connections"`
	CurrentConnections int        `json:"current_connections"`
	PeakConnections    int        `json:"peak_connections"`
	ConnectedUsers     []string   `json:"connected_users"`
	MessagesSent       int64      `json:"messages_sent"`
	Errors             int64      `json:"errors"`
	RateLimited        int64      `json:"rate_limited_attempts"`
	LastUpdate         *time.Time `json:"last_update,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
}

// Default collector configuration constants.
const (
	defaultFlushInterval = 30 * time.Second
	defaultStatsTTL      = 10 * time.Minute
)

// StatsSource provides the counters the collector persists.
type StatsSource interface {
	Stats() StatsSnapshot
}

// Collector persists registry statistics to the external cache, both on a
// fixed interval and whenever the registry signals a connection change.
type Collector struct {
	source   StatsSource
	cache    cache.Cache
	interval time.Duration
	ttl      time.Duration
	kick     chan struct{}
	logger   logger.Logger
}

// CollectorOption applies a configuration option to the Collector.
type CollectorOption func(*Collector)

// WithFlushInterval sets the periodic flush interval.
func WithFlushInterval(d time.Duration) CollectorOption {
	return func(c *Collector) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithStatsTTL sets the TTL on the cached stats snapshot.
func WithStatsTTL(d time.Duration) CollectorOption {
	return func(c *Collector) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithCollectorLogger sets a custom logger for the collector.
func WithCollectorLogger(l logger.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCollector creates a stats collector with configuration options.
func NewCollector(source StatsSource, store cache.Cache, opts ...CollectorOption) *Collector {
	c := &Collector{
		source:   source,
		cache:    store,
		interval: defaultFlushInterval,
		ttl:      defaultStatsTTL,
		kick:     make(chan struct{}, 1),
		logger:   logger.Get().Named("stats"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Notify requests an out-of-band flush. It never blocks, so it is safe to
// call from the registry's change listener.
func (c *Collector) Notify() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Run flushes stats until ctx is canceled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flush(ctx)
		case <-c.kick:
			c.flush(ctx)
		}
	}
}

// Flush persists the current stats snapshot immediately.
func (c *Collector) Flush(ctx context.Context) error {
	snap := c.source.Stats()
	if err := c.cache.Set(ctx, cache.KeyStats, snap, c.ttl); err != nil {
		metrics.RecordCacheError()
		return err
	}
	return nil
}

func (c *Collector) flush(ctx context.Context) {
	if err := c.Flush(ctx); err != nil {
		// A failed flush only costs staleness; the next tick retries.
		c.logger.Warn(ctx, "stats flush failed", logger.Error(err))
	}
}
