// Package ws adapts websocket connections to the realtime connection
// registry.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single send may block on a slow peer.
const writeWait = 10 * time.Second

// Conn wraps a websocket connection as a registry handle. A write mutex
// serializes sends so per-handle message ordering is preserved.
type Conn struct {
	id   string
	sock *websocket.Conn
	mu   sync.Mutex
}

// NewConn wraps an upgraded websocket connection.
func NewConn(sock *websocket.Conn) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		sock: sock,
	}
}

// ID identifies the handle within its user's set.
func (c *Conn) ID() string { return c.id }

// Send delivers one serialized message as a text frame.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.sock.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close tears the underlying websocket down.
func (c *Conn) Close() error {
	return c.sock.Close()
}
