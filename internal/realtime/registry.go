package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/breakrack/rankd/pkg/logger"
	"github.com/breakrack/rankd/pkg/metrics"
)

// Default registry ceilings.
const (
	defaultMaxPerUser = 5
	defaultMaxTotal   = 1000
)

// Registry owns the set of live handles per user. A user may hold several
// handles at once (multi-device); disconnecting one never affects the rest.
// All mutations happen under one registry-wide lock and never suspend while
// holding it.
type Registry struct {
	mu         sync.Mutex
	conns      map[string]map[string]Conn // user id -> handle id -> handle
	maxPerUser int
	maxTotal   int

	current          int
	totalConnections int
	peak             int
	messagesSent     int64
	deliveryErrors   int64
	rateLimited      int64
	lastUpdate       time.Time
	lastError        string

	onChange func()
	logger   logger.Logger
}

// RegistryOption applies a configuration option to the Registry.
type RegistryOption func(*Registry)

// WithMaxConnectionsPerUser caps concurrent handles per user.
func WithMaxConnectionsPerUser(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxPerUser = n
		}
	}
}

// WithMaxTotalConnections caps concurrent handles across all users.
func WithMaxTotalConnections(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxTotal = n
		}
	}
}

// WithRegistryLogger sets a custom logger for the registry.
func WithRegistryLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithChangeListener registers a callback fired after every
// connection-count-changing event. The callback must not block.
func WithChangeListener(fn func()) RegistryOption {
	return func(r *Registry) {
		r.onChange = fn
	}
}

// NewRegistry creates a connection registry with configuration options.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:      make(map[string]map[string]Conn),
		maxPerUser: defaultMaxPerUser,
		maxTotal:   defaultMaxTotal,
		logger:     logger.Get().Named("registry"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Connect registers a handle for userID. Exceeding either ceiling rejects
// the handle and counts a rate-limited attempt.
func (r *Registry) Connect(ctx context.Context, userID string, conn Conn) error {
	r.mu.Lock()

	if len(r.conns[userID]) >= r.maxPerUser {
		r.rateLimited++
		r.lastError = ErrUserLimit.Error()
		r.mu.Unlock()
		metrics.RecordRejectedConnection()
		return ErrUserLimit
	}
	if r.current >= r.maxTotal {
		r.rateLimited++
		r.lastError = ErrRegistryFull.Error()
		r.mu.Unlock()
		metrics.RecordRejectedConnection()
		return ErrRegistryFull
	}

	handles, ok := r.conns[userID]
	if !ok {
		handles = make(map[string]Conn)
		r.conns[userID] = handles
	}
	handles[conn.ID()] = conn

	r.current++
	r.totalConnections++
	if r.current > r.peak {
		r.peak = r.current
	}
	current, peak := r.current, r.peak
	r.mu.Unlock()

	metrics.RecordConnection()
	metrics.UpdateCurrentConnections(current)
	metrics.UpdatePeakConnections(peak)
	r.logger.Debug(ctx, "connection registered",
		logger.String("userID", userID),
		logger.String("connID", conn.ID()),
		logger.Int("current", current),
	)

	r.notifyChange()
	return nil
}

// Disconnect unregisters a handle unconditionally and closes it. Unknown
// handles are ignored so disconnect stays idempotent with in-flight drops.
func (r *Registry) Disconnect(ctx context.Context, userID string, conn Conn) {
	r.mu.Lock()
	handles, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := handles[conn.ID()]; !ok {
		r.mu.Unlock()
		return
	}

	delete(handles, conn.ID())
	if len(handles) == 0 {
		delete(r.conns, userID)
	}
	r.current--
	current := r.current
	r.mu.Unlock()

	_ = conn.Close()
	metrics.UpdateCurrentConnections(current)
	r.logger.Debug(ctx, "connection unregistered",
		logger.String("userID", userID),
		logger.String("connID", conn.ID()),
		logger.Int("current", current),
	)

	r.notifyChange()
}

// ConnectionsFor returns a copy of userID's live handles.
func (r *Registry) ConnectionsFor(userID string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := r.conns[userID]
	out := make([]Conn, 0, len(handles))
	for _, c := range handles {
		out = append(out, c)
	}
	return out
}

// Target pairs a handle with the user it belongs to, for global fan-out.
type Target struct {
	UserID string
	Conn   Conn
}

// Fanout returns a copy of every registered handle across all users.
func (r *Registry) Fanout() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Target, 0, r.current)
	for userID, handles := range r.conns {
		for _, c := range handles {
			out = append(out, Target{UserID: userID, Conn: c})
		}
	}
	return out
}

// CurrentConnections returns the number of live handles.
func (r *Registry) CurrentConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Stats returns a point-in-time copy of the registry counters.
func (r *Registry) Stats() StatsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	sort.Strings(users)

	snap := StatsSnapshot{
		TotalConnections:   r.totalConnections,
		CurrentConnections: r.current,
		PeakConnections:    r.peak,
		ConnectedUsers:     users,
		MessagesSent:       r.messagesSent,
		Errors:             r.deliveryErrors,
		RateLimited:        r.rateLimited,
		LastError:          r.lastError,
	}
	if !r.lastUpdate.IsZero() {
		at := r.lastUpdate
		snap.LastUpdate = &at
	}
	return snap
}

// recordSend counts one successful delivery.
func (r *Registry) recordSend() {
	r.mu.Lock()
	r.messagesSent++
	r.mu.Unlock()
}

// recordDeliveryError counts one failed delivery.
func (r *Registry) recordDeliveryError(err error) {
	r.mu.Lock()
	r.deliveryErrors++
	if err != nil {
		r.lastError = err.Error()
	}
	r.mu.Unlock()
}

// markBroadcast stamps the time of the latest global broadcast.
func (r *Registry) markBroadcast(at time.Time) {
	r.mu.Lock()
	r.lastUpdate = at
	r.mu.Unlock()
}

func (r *Registry) notifyChange() {
	if r.onChange != nil {
		r.onChange()
	}
}
