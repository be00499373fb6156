package wsload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/breakrack/rankd/internal/domain/types"
	"github.com/breakrack/rankd/pkg/logger"
)

const settleDelay = 2 * time.Second

// Run executes the complete load and consistency check.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting ranking load test",
		logger.String("baseURL", config.BaseURL),
		logger.String("wsURL", config.WSURL),
		logger.Int("clients", config.Clients),
		logger.Int("perUser", config.PerUser),
		logger.Int("topN", config.TopN),
		logger.Duration("duration", config.Duration))

	client := newHTTPClient(config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Connect websocket clients
	latest := make(chan []types.RankingEntry, 1)
	var wg sync.WaitGroup
	for i := 0; i < config.Clients; i++ {
		userID := fmt.Sprintf("load-user-%04d", i/max(config.PerUser, 1))
		wg.Add(1)
		go func() {
			defer wg.Done()
			runClient(ctx, config, userID, stats, latest)
		}()
	}

	// Step 3: Trigger a recompute so connected clients receive a broadcast
	time.Sleep(settleDelay)
	if err := client.post(ctx, config.BaseURL+"/rankings/refresh"); err != nil {
		return fmt.Errorf("refresh trigger failed: %w", err)
	}

	// Step 4: Wait for clients to drain their read windows
	wg.Wait()

	// Step 5: Compare the last broadcast against the HTTP leaderboard
	var broadcast []types.RankingEntry
	select {
	case broadcast = <-latest:
	default:
	}
	if err := verifyConsistency(ctx, client, config, broadcast); err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}

	stats.EndTime = time.Now()
	displayFinalStats(ctx, stats)
	return nil
}

// checkServiceHealth verifies /stats responds before the test starts.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	var stats map[string]any
	if err := client.getJSON(ctx, config.BaseURL+"/stats", &stats); err != nil {
		return err
	}
	logger.Get().Info(ctx, "service is healthy", logger.Any("stats", stats))
	return nil
}

// verifyConsistency checks the broadcast leaderboard prefix against the
// HTTP top rankings. An empty broadcast is allowed when no client held a
// connection through the refresh.
func verifyConsistency(ctx context.Context, client *HTTPClient, config *Config, broadcast []types.RankingEntry) error {
	var top []types.RankingEntry
	url := fmt.Sprintf("%s/rankings/top?limit=%d", config.BaseURL, config.TopN)
	if err := client.getJSON(ctx, url, &top); err != nil {
		return err
	}

	for i := 1; i < len(top); i++ {
		if top[i].Rating > top[i-1].Rating {
			return fmt.Errorf("leaderboard out of order at rank %d", top[i].Rank)
		}
		if top[i].Rank != top[i-1].Rank+1 {
			return fmt.Errorf("non-contiguous ranks at position %d", i)
		}
	}

	if len(broadcast) == 0 {
		logger.Get().Warn(ctx, "no global update captured; skipping broadcast comparison")
		return nil
	}
	limit := min(len(broadcast), len(top))
	for i := 0; i < limit; i++ {
		if broadcast[i].UserID != top[i].UserID {
			return fmt.Errorf("broadcast and leaderboard diverge at rank %d: %s vs %s",
				i+1, broadcast[i].UserID, top[i].UserID)
		}
	}
	logger.Get().Info(ctx, "broadcast matches leaderboard", logger.Int("compared", limit))
	return nil
}

// displayFinalStats logs the final counters.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "load test complete",
		logger.Duration("took", stats.EndTime.Sub(stats.StartTime)),
		logger.Int64("connected", stats.Connected.Load()),
		logger.Int64("rejected", stats.Rejected.Load()),
		logger.Int64("envelopes", stats.EnvelopesRecv.Load()),
		logger.Int64("globalUpdates", stats.GlobalUpdates.Load()),
		logger.Int64("rankingUpdates", stats.RankingUpdates.Load()),
		logger.Int64("significant", stats.SignificantRecv.Load()),
		logger.Int64("decodeErrors", stats.DecodeErrors.Load()))
}
