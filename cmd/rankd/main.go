package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/breakrack/rankd/internal/adapters/cache"
	"github.com/breakrack/rankd/internal/adapters/http/api"
	"github.com/breakrack/rankd/internal/adapters/ws"
	service "github.com/breakrack/rankd/internal/app"
	"github.com/breakrack/rankd/internal/config"
	"github.com/breakrack/rankd/internal/domain/rating"
	"github.com/breakrack/rankd/internal/domain/tier"
	"github.com/breakrack/rankd/pkg/logger"
	"github.com/breakrack/rankd/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Select the snapshot cache: Redis when configured, in-process otherwise.
	var snapshotCache cache.Cache
	if cfg.RedisAddr != "" {
		redisCfg := cache.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		redisCache, err := cache.NewRedis(redisCfg)
		if err != nil {
			loggerInstance.Warn(ctx, "redis unavailable; using in-process cache", logger.Error(err))
			snapshotCache = cache.NewMemory()
		} else {
			snapshotCache = redisCache
		}
	} else {
		loggerInstance.Warn(ctx, "no redis_addr configured; using in-process cache")
		snapshotCache = cache.NewMemory()
	}
	defer func() {
		if err := snapshotCache.Close(); err != nil {
			loggerInstance.Error(ctx, "failed to close cache", logger.Error(err))
		}
	}()

	// Create and start the service with configuration options
	svc := service.New(
		service.WithLogger(loggerInstance.Named("ranking")),
		service.WithCache(snapshotCache),
		service.WithCalculator(rating.New(
			rating.WithKFactor(cfg.KFactor),
			rating.WithInitialRating(cfg.InitialRating),
			rating.WithMinimumRating(cfg.MinimumRating),
		)),
		service.WithTierClassifier(tier.New(tier.WithTiers(tiersFromConfig(cfg.Tiers)))),
		service.WithUpdateInterval(cfg.UpdateInterval()),
		service.WithActiveWindow(cfg.ActiveWindow()),
		service.WithSnapshotTTL(cfg.SnapshotTTL()),
		service.WithSignificanceThreshold(cfg.SignificanceThreshold),
		service.WithConnectionLimits(cfg.MaxConnectionsPerUser, cfg.MaxTotalConnections),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Realtime websocket endpoint.
	wsHandler := ws.NewHandler(svc.Registry())
	mux.HandleFunc("/ws", wsHandler.HandleWS)

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// tiersFromConfig converts configured tiers to the classifier's shape.
func tiersFromConfig(tiers []config.TierConfig) []tier.Tier {
	out := make([]tier.Tier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, tier.Tier{
			Name:      t.Name,
			Icon:      t.Icon,
			Color:     t.Color,
			MinRating: t.MinRating,
		})
	}
	return out
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
