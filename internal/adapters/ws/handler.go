package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/breakrack/rankd/internal/realtime"
	"github.com/breakrack/rankd/pkg/logger"
)

// Read-side limits for inbound frames. Clients only receive on this socket;
// inbound traffic is drained and discarded until the peer goes away.
const maxInboundMessageSize = 512

// Handler upgrades HTTP requests to websocket connections and registers them
// with the connection registry.
type Handler struct {
	registry *realtime.Registry
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// HandlerOption applies a configuration option to the Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets a custom logger for the handler.
func WithHandlerLogger(l logger.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a websocket attach handler bound to the registry.
func NewHandler(registry *realtime.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Get().Named("ws"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HandleWS handles GET /ws?user_id=... requests.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	conn := NewConn(sock)
	if err := h.registry.Connect(r.Context(), userID, conn); err != nil {
		reason := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = sock.WriteMessage(websocket.CloseMessage, reason)
		_ = sock.Close()
		if !errors.Is(err, realtime.ErrUserLimit) && !errors.Is(err, realtime.ErrRegistryFull) {
			h.logger.Error(r.Context(), "connection rejected", logger.Error(err))
		}
		return
	}

	sock.SetReadLimit(maxInboundMessageSize)
	go h.readLoop(userID, conn, sock)
}

// readLoop drains inbound frames until the peer disconnects, then
// unregisters the handle. The registry is notified exactly once regardless
// of how the connection died.
func (h *Handler) readLoop(userID string, conn *Conn, sock *websocket.Conn) {
	defer h.registry.Disconnect(context.Background(), userID, conn)

	for {
		if _, _, err := sock.ReadMessage(); err != nil {
			return
		}
	}
}
