package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"signalbroker/internal/core/domain"
	"signalbroker/internal/core/ports"
)

// Now is swapped out in tests to make I4 (connectedAt <= lastActivity <=
// now()) checkable without real sleeps.
var Now = time.Now

// Registry is the single authoritative table of live connections
// (§4.C). It owns connection liveness (I1) and drives the idle reaper.
type Registry struct {
	mu          sync.RWMutex
	connections map[domain.ConnectionID]*domain.Connection
	streamers   []domain.ConnectionID // insertion order, for the selection policy
	rrCursor    uint64

	idleTimeout time.Duration
	metrics     ports.MetricsObserver
	logger      *zap.SugaredLogger
}

// NewRegistry builds an empty registry.
func NewRegistry(idleTimeout time.Duration, metrics ports.MetricsObserver, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		connections: make(map[domain.ConnectionID]*domain.Connection),
		idleTimeout: idleTimeout,
		metrics:     metrics,
		logger:      logger,
	}
}

// Register adds a connection. Returns ErrAlreadyRegistered if the ID
// collides (should never happen with 128-bit random IDs, but the registry
// is the enforcement point for I1 regardless).
func (r *Registry) Register(conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID]; exists {
		return domain.ErrAlreadyRegistered
	}
	conn.ConnectedAt = Now()
	conn.LastActivity = conn.ConnectedAt
	r.connections[conn.ID] = conn
	if conn.Role == domain.RoleStreamer {
		r.streamers = append(r.streamers, conn.ID)
	}
	if r.metrics != nil {
		r.metrics.ConnectionRegistered(conn.Role)
	}
	return nil
}

// Unregister removes a connection from the table. It is idempotent.
func (r *Registry) Unregister(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[id]
	if !ok {
		return
	}
	delete(r.connections, id)
	if conn.Role == domain.RoleStreamer {
		for i, sid := range r.streamers {
			if sid == id {
				r.streamers = append(r.streamers[:i], r.streamers[i+1:]...)
				break
			}
		}
	}
	if r.metrics != nil {
		r.metrics.ConnectionUnregistered(conn.Role)
	}
}

// Get looks up a connection by ID.
func (r *Registry) Get(id domain.ConnectionID) (*domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connections[id]
	return c, ok
}

// Touch refreshes a connection's last-activity timestamp. Called on every
// decoded inbound frame (I4); WebSocket-level pongs only move the socket's
// read deadline and do not refresh it.
func (r *Registry) Touch(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.connections[id]; ok {
		c.LastActivity = Now()
	}
}

// StreamerIDs returns the public IDs of all registered streamers, in
// registration order.
func (r *Registry) StreamerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.streamers))
	for _, id := range r.streamers {
		if c, ok := r.connections[id]; ok {
			ids = append(ids, c.PublicID)
		}
	}
	return ids
}

// FindAvailableStreamer implements §4.C's streamer-selection policy:
// "returns any streamer whose subscriber count is strictly below its
// cap; selection policy is unspecified-but-stable". This picks round
// robin over currently registered streamers, skipping any the caller's
// hasCapacity predicate reports as full, starting from a rotating cursor
// so load spreads evenly across calls with the same live set.
func (r *Registry) FindAvailableStreamer(hasCapacity func(domain.ConnectionID) bool) (*domain.Connection, bool) {
	r.mu.RLock()
	streamers := make([]domain.ConnectionID, len(r.streamers))
	copy(streamers, r.streamers)
	r.mu.RUnlock()

	n := len(streamers)
	if n == 0 {
		return nil, false
	}
	start := atomic.AddUint64(&r.rrCursor, 1)
	for i := 0; i < n; i++ {
		id := streamers[(int(start)+i)%n]
		if !hasCapacity(id) {
			continue
		}
		r.mu.RLock()
		c, ok := r.connections[id]
		r.mu.RUnlock()
		if ok {
			return c, true
		}
	}
	return nil, false
}

// ByPublicID finds a registered streamer by its wire-visible public ID.
func (r *Registry) ByPublicID(publicID string) (*domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.streamers {
		if c := r.connections[id]; c != nil && c.PublicID == publicID {
			return c, true
		}
	}
	return nil, false
}

// Stats returns a point-in-time ConnectionStats snapshot.
func (r *Registry) Stats(totalSubscriptions int) domain.ConnectionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.ConnectionStats{TotalSubscriptions: totalSubscriptions}
	for _, c := range r.connections {
		switch c.Role {
		case domain.RolePlayer:
			stats.PlayerConnections++
		case domain.RoleStreamer:
			stats.StreamerConnections++
		case domain.RoleSFU:
			stats.SFUConnections++
		}
	}
	return stats
}

// RunIdleReaper sweeps the registry every interval and closes any
// connection whose last activity is older than idleTimeout, until ctx is
// canceled. It mirrors the original implementation's 30-second
// ScheduledExecutorService sweep as a single ticker goroutine owned by
// the registry rather than per-connection timers.
func (r *Registry) RunIdleReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapOnce()
		}
	}
}

func (r *Registry) reapOnce() {
	cutoff := Now().Add(-r.idleTimeout)

	r.mu.RLock()
	var stale []*domain.Connection
	for _, c := range r.connections {
		if c.LastActivity.Before(cutoff) {
			stale = append(stale, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range stale {
		if r.logger != nil {
			r.logger.Infow("reaping idle connection", "connection_id", c.ID, "role", c.Role.String())
		}
		if r.metrics != nil {
			r.metrics.IdleReaped(c.Role)
		}
		if c.Sender != nil {
			_ = c.Sender.Close(1000, "idle timeout")
		}
	}
}
