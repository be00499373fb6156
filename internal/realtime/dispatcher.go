package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/breakrack/rankd/internal/domain/types"
	"github.com/breakrack/rankd/pkg/logger"
	"github.com/breakrack/rankd/pkg/metrics"
)

// defaultSignificanceThreshold is the minimum rank movement that fires a
// significant_change notification.
const defaultSignificanceThreshold = 5

// Dispatcher serializes ranking messages and fans them out through the
// Registry. A failed send drops only the failing handle; delivery to the
// remaining handles continues.
type Dispatcher struct {
	registry  *Registry
	threshold int
	logger    logger.Logger
	now       func() time.Time
}

// DispatcherOption applies a configuration option to the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSignificanceThreshold sets the minimum rank movement that notifies.
func WithSignificanceThreshold(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.threshold = n
		}
	}
}

// WithDispatcherLogger sets a custom logger for the dispatcher.
func WithDispatcherLogger(l logger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDispatcherClock sets the time source for envelope timestamps.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher creates a dispatcher bound to the given registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		threshold: defaultSignificanceThreshold,
		logger:    logger.Get().Named("dispatcher"),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// BroadcastRankingUpdate sends a ranking_update message to every handle
// registered for userID. Returns the number of successful sends.
func (d *Dispatcher) BroadcastRankingUpdate(ctx context.Context, userID string, data any) int {
	payload, err := d.marshal(MessageRankingUpdate, data)
	if err != nil {
		d.logger.Error(ctx, "failed to encode ranking update", logger.Error(err))
		return 0
	}

	delivered := 0
	for _, conn := range d.registry.ConnectionsFor(userID) {
		if d.send(ctx, userID, conn, payload, MessageRankingUpdate) {
			delivered++
		}
	}
	return delivered
}

// BroadcastGlobalUpdate sends a global_update message carrying the given
// rankings to every registered handle across all users. Returns the number
// of successful sends.
func (d *Dispatcher) BroadcastGlobalUpdate(ctx context.Context, rankings []types.RankingEntry, total int) int {
	payload, err := d.marshal(MessageGlobalUpdate, GlobalUpdate{Rankings: rankings, Total: total})
	if err != nil {
		d.logger.Error(ctx, "failed to encode global update", logger.Error(err))
		return 0
	}

	delivered := 0
	for _, target := range d.registry.Fanout() {
		if d.send(ctx, target.UserID, target.Conn, payload, MessageGlobalUpdate) {
			delivered++
		}
	}

	d.registry.markBroadcast(d.now())
	return delivered
}

// NotifySignificantChange sends a significant_change message to userID's
// handles when the rank movement meets the threshold. Returns true when a
// notification was dispatched.
func (d *Dispatcher) NotifySignificantChange(ctx context.Context, userID string, oldRank, newRank int) bool {
	diff := oldRank - newRank
	if diff < 0 {
		diff = -diff
	}
	if diff < d.threshold {
		return false
	}

	change := RankChange{OldRank: oldRank, NewRank: newRank, Change: oldRank - newRank}
	payload, err := d.marshal(MessageSignificantChange, change)
	if err != nil {
		d.logger.Error(ctx, "failed to encode significant change", logger.Error(err))
		return false
	}

	for _, conn := range d.registry.ConnectionsFor(userID) {
		d.send(ctx, userID, conn, payload, MessageSignificantChange)
	}
	return true
}

// marshal wraps data in the message envelope and serializes it once, so a
// fan-out reuses the same payload for every handle.
func (d *Dispatcher) marshal(t MessageType, data any) ([]byte, error) {
	payload, err := json.Marshal(Envelope{Type: t, Data: data, Timestamp: d.now()})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", t, err)
	}
	return payload, nil
}

// send delivers one payload to one handle. Delivery failure drops the handle
// from the registry and never aborts the surrounding broadcast.
func (d *Dispatcher) send(ctx context.Context, userID string, conn Conn, payload []byte, t MessageType) bool {
	if err := conn.Send(ctx, payload); err != nil {
		d.registry.recordDeliveryError(err)
		metrics.RecordDeliveryError()
		d.logger.Warn(ctx, "dropping connection after failed send",
			logger.String("userID", userID),
			logger.String("connID", conn.ID()),
			logger.Error(err),
		)
		d.registry.Disconnect(ctx, userID, conn)
		return false
	}

	d.registry.recordSend()
	metrics.RecordMessageSent(string(t))
	return true
}
