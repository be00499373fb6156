package wsload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/breakrack/rankd/internal/domain/types"
	"github.com/breakrack/rankd/pkg/logger"
)

const maxResponseBytes = 1 << 20

// HTTPClient wraps the standard client with a configured timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s: %w", url, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}

// envelope mirrors the service's outbound message shape.
type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// globalUpdate mirrors the global_update payload.
type globalUpdate struct {
	Rankings []types.RankingEntry `json:"rankings"`
	Total    int                  `json:"total"`
}

// runClient connects one websocket client and counts the envelopes it
// receives until ctx is canceled or the connection drops.
func runClient(ctx context.Context, config *Config, userID string, stats *Stats, latest chan<- []types.RankingEntry) {
	url := fmt.Sprintf("%s?user_id=%s", config.WSURL, userID)
	sock, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		stats.Rejected.Add(1)
		if config.Verbose {
			logger.Get().Debug(ctx, "dial failed", logger.String("userID", userID), logger.Error(err))
		}
		return
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer sock.Close()
	stats.Connected.Add(1)

	deadline := time.Now().Add(config.Duration)
	_ = sock.SetReadDeadline(deadline)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, payload, err := sock.ReadMessage()
		if err != nil {
			return
		}
		stats.EnvelopesRecv.Add(1)

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			stats.DecodeErrors.Add(1)
			continue
		}

		switch env.Type {
		case "ranking_update":
			stats.RankingUpdates.Add(1)
		case "significant_change":
			stats.SignificantRecv.Add(1)
		case "global_update":
			stats.GlobalUpdates.Add(1)
			var gu globalUpdate
			if err := json.Unmarshal(env.Data, &gu); err != nil {
				stats.DecodeErrors.Add(1)
				continue
			}
			select {
			case latest <- gu.Rankings:
			default:
			}
		default:
			stats.DecodeErrors.Add(1)
		}
	}
}
