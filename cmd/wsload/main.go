package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/breakrack/rankd/internal/wsload"
	"github.com/breakrack/rankd/pkg/logger"
)

// Default configuration constants.
const (
	defaultClients     = 200
	defaultPerUser     = 2
	defaultTopN        = 50
	defaultTimeout     = 10 * time.Second
	defaultDuration    = 30 * time.Second
	defaultTestTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9090", "Base URL of the service")
		wsURL    = flag.String("ws", "ws://localhost:9090/ws", "Websocket URL of the service")
		clients  = flag.Int("clients", defaultClients, "Number of websocket clients to connect")
		perUser  = flag.Int("per-user", defaultPerUser, "Connections opened per synthetic user")
		topN     = flag.Int("top", defaultTopN, "Leaderboard depth to verify")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		duration = flag.Duration("duration", defaultDuration, "How long clients stay connected")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &wsload.Config{
		BaseURL:  *baseURL,
		WSURL:    *wsURL,
		Clients:  *clients,
		PerUser:  *perUser,
		TopN:     *topN,
		Timeout:  *timeout,
		Duration: *duration,
		Verbose:  *verbose,
	}

	if err := wsload.Run(ctx, config); err != nil {
		os.Stderr.WriteString("load test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
