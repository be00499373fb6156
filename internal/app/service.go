// Package service provides the core ranking service that implements
// the dependencies required by the HTTP API and the realtime dispatcher.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/breakrack/rankd/internal/adapters/cache"
	"github.com/breakrack/rankd/internal/adapters/matches"
	"github.com/breakrack/rankd/internal/adapters/repository"
	"github.com/breakrack/rankd/internal/domain/perf"
	"github.com/breakrack/rankd/internal/domain/rating"
	"github.com/breakrack/rankd/internal/domain/tier"
	"github.com/breakrack/rankd/internal/domain/types"
	"github.com/breakrack/rankd/internal/realtime"
	"github.com/breakrack/rankd/pkg/logger"
	"github.com/breakrack/rankd/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultUpdateInterval  = 5 * time.Minute
	defaultActiveWindow    = 30 * 24 * time.Hour
	defaultSnapshotTTL     = 5 * time.Minute
	defaultBaselineWindow  = 24 * time.Hour
	defaultGlobalBroadcast = 100 // top N entries carried by a global update
	placementHistoryLimit  = 10
)

// Service owns the ranking store, the periodic updater, and the realtime
// distribution components.
type Service struct {
	mu sync.Mutex

	// Core components
	store      *repository.Store
	matches    matches.Source
	cache      cache.Cache
	calc       *rating.Calculator
	tiers      *tier.Classifier
	perf       *perf.Engine
	registry   *realtime.Registry
	dispatcher *realtime.Dispatcher
	collector  *realtime.Collector

	// Configuration
	updateInterval time.Duration
	activeWindow   time.Duration
	snapshotTTL    time.Duration
	baselineWindow time.Duration
	significance   int
	maxPerUser     int
	maxTotal       int

	// updateMu serializes recompute cycles so a manual trigger and the
	// periodic loop never interleave.
	updateMu sync.Mutex

	// 24h change baseline: ratings captured at baselineAt, refreshed once
	// the window has elapsed.
	baselineMu sync.Mutex
	baseline   map[string]float64
	baselineAt time.Time

	// State
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
	now    func() time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithMatchSource sets the match-history source.
func WithMatchSource(src matches.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.matches = src
		}
	}
}

// WithCache sets the external snapshot cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithCalculator sets a custom rating calculator.
func WithCalculator(c *rating.Calculator) Option {
	return func(s *Service) {
		if c != nil {
			s.calc = c
		}
	}
}

// WithTierClassifier sets a custom tier classifier.
func WithTierClassifier(c *tier.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.tiers = c
		}
	}
}

// WithPerformanceEngine sets a custom performance metrics engine.
func WithPerformanceEngine(e *perf.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.perf = e
		}
	}
}

// WithUpdateInterval sets the period of the recompute loop.
func WithUpdateInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.updateInterval = d
		}
	}
}

// WithActiveWindow sets the activity cutoff for ranked players.
func WithActiveWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.activeWindow = d
		}
	}
}

// WithSnapshotTTL sets the TTL on cached ranking snapshots.
func WithSnapshotTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.snapshotTTL = d
		}
	}
}

// WithSignificanceThreshold sets the rank movement that triggers notifications.
func WithSignificanceThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.significance = n
		}
	}
}

// WithConnectionLimits sets the per-user and total connection ceilings.
func WithConnectionLimits(perUser, total int) Option {
	return func(s *Service) {
		if perUser > 0 {
			s.maxPerUser = perUser
		}
		if total > 0 {
			s.maxTotal = total
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source, used by tests for deterministic baselines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		updateInterval: defaultUpdateInterval,
		activeWindow:   defaultActiveWindow,
		snapshotTTL:    defaultSnapshotTTL,
		baselineWindow: defaultBaselineWindow,
		baseline:       make(map[string]float64),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes components and launches the periodic updater and the
// stats collector. A cached snapshot, when present, is adopted immediately
// and refreshed asynchronously.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("ranking")
	}
	if s.matches == nil {
		s.matches = matches.NewInMemorySource()
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}
	if s.calc == nil {
		s.calc = rating.New()
	}
	if s.tiers == nil {
		s.tiers = tier.New()
	}
	if s.perf == nil {
		s.perf = perf.New()
	}

	s.store = repository.NewStore()

	var registryOpts []realtime.RegistryOption
	if s.maxPerUser > 0 {
		registryOpts = append(registryOpts, realtime.WithMaxConnectionsPerUser(s.maxPerUser))
	}
	if s.maxTotal > 0 {
		registryOpts = append(registryOpts, realtime.WithMaxTotalConnections(s.maxTotal))
	}

	// The collector does not exist yet when the registry is built; the
	// listener closure resolves it at call time.
	var collector *realtime.Collector
	registryOpts = append(registryOpts, realtime.WithChangeListener(func() {
		if collector != nil {
			collector.Notify()
		}
	}))
	s.registry = realtime.NewRegistry(registryOpts...)
	collector = realtime.NewCollector(s.registry, s.cache, realtime.WithStatsTTL(s.snapshotTTL*2))
	s.collector = collector

	var dispatcherOpts []realtime.DispatcherOption
	if s.significance > 0 {
		dispatcherOpts = append(dispatcherOpts, realtime.WithSignificanceThreshold(s.significance))
	}
	s.dispatcher = realtime.NewDispatcher(s.registry, dispatcherOpts...)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	restored := s.loadCachedRankings(ctx)
	if restored {
		s.logger.Info(ctx, "adopted cached ranking snapshot",
			logger.Int("players", s.store.Count()),
		)
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.runUpdater(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.collector.Run(runCtx)
	}()

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Duration("updateInterval", s.updateInterval),
		logger.Bool("cacheRestored", restored),
	)

	return nil
}

// Stop cancels the background loops and waits for them to finish. An
// in-flight cycle either completes or is abandoned; the published snapshot
// is never corrupted either way.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.cancel()
	s.wg.Wait()

	// Best-effort final stats flush.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.collector.Flush(flushCtx)

	s.started = false
	s.logger.Info(context.Background(), "ranking service stopped")
}

// Registry exposes the connection registry for transport wiring.
func (s *Service) Registry() *realtime.Registry { return s.registry }

// Dispatcher exposes the broadcast dispatcher for transport wiring.
func (s *Service) Dispatcher() *realtime.Dispatcher { return s.dispatcher }

// runUpdater drives the recompute loop: one immediate refresh on startup,
// then one cycle per interval until canceled.
func (s *Service) runUpdater(ctx context.Context) {
	if err := s.UpdateGlobalRankings(ctx); err != nil {
		s.logger.Warn(ctx, "initial recompute failed; previous snapshot remains authoritative", logger.Error(err))
	}

	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.UpdateGlobalRankings(ctx); err != nil {
				s.logger.Warn(ctx, "recompute cycle failed; previous snapshot remains authoritative", logger.Error(err))
			}
		}
	}
}

// UpdateGlobalRankings runs one full recompute cycle: fetch active players
// and their histories, compute entries, swap the snapshot in atomically,
// notify connected clients, and persist the result. On failure the previous
// snapshot stays authoritative and the error is returned for logging.
func (s *Service) UpdateGlobalRankings(ctx context.Context) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	start := s.now()

	// FETCHING: all I/O happens before any lock is taken on the store.
	activeIDs, err := s.matches.ActiveUserIDs(ctx, start.Add(-s.activeWindow))
	if err != nil {
		metrics.RecordRecomputeFailure()
		return fmt.Errorf("fetch active players: %w", err)
	}

	prev := s.store.Current()

	// COMPUTING: build the new entries map in a private buffer. Each player
	// folds their full history from the initial rating; opponents resolve
	// from the previous snapshot, never the player themselves, so the same
	// history always yields the same result.
	entries := make(map[string]types.RankingEntry, len(activeIDs))
	for _, userID := range activeIDs {
		self := userID
		lookup := func(id string) (float64, bool) {
			if id == self {
				return 0, false
			}
			e, ok := prev.Entry(id)
			return e.Rating, ok
		}
		entries[userID] = s.computeEntry(ctx, userID, lookup)
	}

	now := s.now()
	s.applyChangeBaseline(entries, now)

	// SWAPPING: a single pointer swap publishes the complete snapshot.
	next := repository.BuildSnapshot(entries, now)
	s.store.Swap(next)

	metrics.RecordRecomputeCycle()
	metrics.ObserveRecomputeDuration(float64(s.now().Sub(start).Milliseconds()))
	metrics.SetLastRecompute(float64(now.Unix()))
	metrics.UpdateTrackedPlayers(next.Len())

	// Distribution: per-user updates and significance checks go only to
	// users with live handles; the global update fans out to everyone.
	if s.dispatcher != nil {
		s.distribute(ctx, prev, next)
	}

	// CACHING: persist exactly the snapshot that was swapped in.
	s.cacheRankings(ctx, next)

	s.logger.Debug(ctx, "recompute cycle complete",
		logger.Int("players", next.Len()),
		logger.Duration("took", s.now().Sub(start)),
	)
	return nil
}

// computeEntry builds one player's ranking entry. Any failure obtaining
// match history degrades to a default entry at the initial rating so a
// single bad player never blocks the cycle.
func (s *Service) computeEntry(ctx context.Context, userID string, lookup rating.Lookup) types.RankingEntry {
	games, err := s.matches.CompletedGames(ctx, userID)
	if err != nil {
		metrics.RecordRatingFallback()
		s.logger.Debug(ctx, "match history unavailable; using defaults",
			logger.String("userID", userID),
			logger.Error(err),
		)
		return types.RankingEntry{
			UserID: userID,
			Rating: s.calc.InitialRating(),
			Title:  s.tiers.Classify(s.calc.InitialRating()).Name,
		}
	}

	r := s.calc.Rating(userID, games, lookup)
	sum := rating.Summarize(userID, games)

	return types.RankingEntry{
		UserID:      userID,
		Rating:      r,
		GamesPlayed: sum.GamesPlayed,
		Wins:        sum.Wins,
		Losses:      sum.Losses,
		Streak:      sum.Streak,
		LastGame:    sum.LastGame,
		Title:       s.tiers.Classify(r).Name,
	}
}

// applyChangeBaseline stamps Change24h on every entry against the rating
// baseline, then rolls the baseline forward once its window has elapsed.
func (s *Service) applyChangeBaseline(entries map[string]types.RankingEntry, now time.Time) {
	s.baselineMu.Lock()
	defer s.baselineMu.Unlock()

	for id, e := range entries {
		if base, ok := s.baseline[id]; ok {
			e.Change24h = e.Rating - base
			entries[id] = e
		}
	}

	if s.baselineAt.IsZero() || now.Sub(s.baselineAt) >= s.baselineWindow {
		next := make(map[string]float64, len(entries))
		for id, e := range entries {
			next[id] = e.Rating
		}
		s.baseline = next
		s.baselineAt = now
	}
}

// distribute pushes the new snapshot to connected clients.
func (s *Service) distribute(ctx context.Context, prev, next *repository.Snapshot) {
	for _, userID := range s.registry.Stats().ConnectedUsers {
		entry, ok := next.Entry(userID)
		if !ok {
			continue
		}
		s.dispatcher.BroadcastRankingUpdate(ctx, userID, entry)

		if old, ok := prev.Entry(userID); ok && old.Rank != entry.Rank {
			s.dispatcher.NotifySignificantChange(ctx, userID, old.Rank, entry.Rank)
		}
	}

	if s.registry.CurrentConnections() > 0 {
		top := next.Range(1, defaultGlobalBroadcast)
		s.dispatcher.BroadcastGlobalUpdate(ctx, top, next.Len())
	}
}

// PlayerRankingDetails returns the detail view for one player. Players
// missing from the snapshot get an on-demand recompute; any data failure
// degrades to a default-rated, zero-metric entry rather than an error.
func (s *Service) PlayerRankingDetails(ctx context.Context, userID string) types.RankingDetails {
	entry, err := s.store.Entry(userID)
	if err != nil {
		entry = s.recomputeSingle(ctx, userID)
	}

	details := types.RankingDetails{RankingEntry: entry}

	games, err := s.matches.CompletedGames(ctx, userID)
	if err != nil {
		// Zero metrics; the core entry is still served.
		return details
	}

	details.WinRate = s.calc.WinRate(userID, games)
	details.Performance = s.perf.Compute(userID, games)
	for _, g := range games {
		if g.Placement == 1 {
			details.TournamentWins++
		}
		if g.Placement >= 1 && len(details.TournamentPlacements) < placementHistoryLimit {
			details.TournamentPlacements = append(details.TournamentPlacements, g.Placement)
		}
	}
	return details
}

// recomputeSingle computes one player's entry outside the periodic cycle
// and publishes it with ranks rebuilt. The swap lock is held only for the
// republish itself.
func (s *Service) recomputeSingle(ctx context.Context, userID string) types.RankingEntry {
	metrics.RecordSingleRecompute()

	snap := s.store.Current()
	lookup := func(id string) (float64, bool) {
		if id == userID {
			return 0, false
		}
		e, ok := snap.Entry(id)
		return e.Rating, ok
	}

	entry := s.computeEntry(ctx, userID, lookup)
	s.store.Upsert(entry, s.now())

	// Upsert reassigned ranks; read the stamped entry back.
	if stamped, err := s.store.Entry(userID); err == nil {
		return stamped
	}
	return entry
}

// RankingsInRange returns entries for ranks [startRank, endRank].
func (s *Service) RankingsInRange(ctx context.Context, startRank, endRank int) []types.RankingEntry {
	return s.store.Range(startRank, endRank)
}

// TopRankings returns the first limit entries of the rank order.
func (s *Service) TopRankings(ctx context.Context, limit int) []types.RankingEntry {
	return s.store.Range(1, limit)
}

// NearbyRankings returns the entries within radius ranks of userID.
func (s *Service) NearbyRankings(ctx context.Context, userID string, radius int) ([]types.RankingEntry, error) {
	nearby, err := s.store.Nearby(userID, radius)
	if err != nil {
		return nil, fmt.Errorf("nearby rankings for %s: %w", userID, err)
	}
	return nearby, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"tracked_players": s.store.Count(),
	}
	if last := s.store.LastUpdate(); !last.IsZero() {
		stats["last_update"] = last.Format(time.RFC3339)
	}

	snap := s.registry.Stats()
	stats["total_connections"] = snap.TotalConnections
	stats["current_connections"] = snap.CurrentConnections
	stats["peak_connections"] = snap.PeakConnections
	stats["connected_users"] = snap.ConnectedUsers
	stats["messages_sent"] = snap.MessagesSent
	stats["errors"] = snap.Errors
	stats["rate_limited_attempts"] = snap.RateLimited

	return stats
}

// loadCachedRankings adopts a cached snapshot when one exists. Any cache
// error counts as a miss; the first scheduled cycle repopulates.
func (s *Service) loadCachedRankings(ctx context.Context) bool {
	var entries map[string]types.RankingEntry
	if err := s.cache.Get(ctx, cache.KeyRankings, &entries); err != nil {
		s.recordCacheMiss(ctx, err)
		return false
	}

	var order []string
	if err := s.cache.Get(ctx, cache.KeyRankOrder, &order); err != nil {
		s.recordCacheMiss(ctx, err)
		return false
	}
	if len(entries) == 0 || len(order) != len(entries) {
		metrics.RecordCacheMiss()
		return false
	}

	lastUpdate := time.Time{}
	var stamp string
	if err := s.cache.Get(ctx, cache.KeyLastUpdate, &stamp); err == nil {
		if parsed, err := time.Parse(time.RFC3339, stamp); err == nil {
			lastUpdate = parsed
		}
	}

	s.store.Swap(repository.RestoreSnapshot(entries, order, lastUpdate))
	metrics.RecordCacheHit()
	metrics.UpdateTrackedPlayers(len(order))
	return true
}

// cacheRankings persists the snapshot that was most recently swapped in.
// Cache write failures are logged and counted but never surface to callers.
func (s *Service) cacheRankings(ctx context.Context, snap *repository.Snapshot) {
	if err := s.cache.Set(ctx, cache.KeyRankings, snap.Entries(), s.snapshotTTL); err != nil {
		metrics.RecordCacheError()
		s.logger.Warn(ctx, "failed to cache rankings", logger.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cache.KeyRankOrder, snap.Order(), s.snapshotTTL); err != nil {
		metrics.RecordCacheError()
		s.logger.Warn(ctx, "failed to cache rank order", logger.Error(err))
		return
	}
	stamp := snap.LastUpdate().Format(time.RFC3339)
	if err := s.cache.Set(ctx, cache.KeyLastUpdate, stamp, s.snapshotTTL); err != nil {
		metrics.RecordCacheError()
		s.logger.Warn(ctx, "failed to cache update stamp", logger.Error(err))
	}
}

func (s *Service) recordCacheMiss(ctx context.Context, err error) {
	if err == cache.ErrCacheMiss {
		metrics.RecordCacheMiss()
		return
	}
	metrics.RecordCacheError()
	s.logger.Warn(ctx, "cache read failed; treating as miss", logger.Error(err))
}
