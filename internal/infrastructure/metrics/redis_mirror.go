// Package metrics provides an optional non-authoritative view of broker
// state for operators running a fleet of signalling brokers, mirrored to
// Redis so a dashboard can aggregate across processes. Nothing here is
// read back by the broker itself — losing Redis never affects routing.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"signalbroker/internal/core/domain"
	"signalbroker/pkg/circuitbreaker"
	"signalbroker/pkg/retry"
)

// RedisMirror implements ports.StatsMirror by writing a point-in-time
// ConnectionStats snapshot to a Redis hash, keyed by broker instance so a
// dashboard can read every broker's key and sum across the fleet. Writes
// are guarded by a circuit breaker and a bounded retry so a flapping
// Redis never blocks or slows down the hot routing path that calls it.
type RedisMirror struct {
	client     *redis.Client
	key        string
	breaker    *circuitbreaker.CircuitBreaker
	retryCfg   retry.Config
	writeGuard time.Duration
	logger     *zap.SugaredLogger
}

// NewRedisMirror dials addr (no connection test is performed here; the
// first Mirror call surfaces connectivity problems through the circuit
// breaker instead of failing startup).
func NewRedisMirror(addr, password string, db int, instanceID string, logger *zap.SugaredLogger) *RedisMirror {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisMirror{
		client:     client,
		key:        fmt.Sprintf("signalbroker:stats:%s", instanceID),
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retryCfg:   retry.DefaultConfig(),
		writeGuard: 2 * time.Second,
		logger:     logger,
	}
}

// Mirror writes stats to Redis with a deadline of at most 2 seconds,
// derived from the caller's context (an earlier caller deadline or a
// cancellation still ends the write sooner), since this is a best-effort
// side channel, not part of the signalling path.
func (m *RedisMirror) Mirror(ctx context.Context, stats domain.ConnectionStats) error {
	wctx, cancel := context.WithTimeout(ctx, m.writeGuard)
	defer cancel()

	err := m.breaker.Execute(wctx, func() error {
		return retry.Retry(wctx, m.retryCfg, func() error {
			return m.client.HSet(wctx, m.key, map[string]interface{}{
				"playerConnections":   stats.PlayerConnections,
				"streamerConnections": stats.StreamerConnections,
				"sfuConnections":      stats.SFUConnections,
				"totalSubscriptions":  stats.TotalSubscriptions,
				"updatedAt":           time.Now().Unix(),
			}).Err()
		})
	})
	if err != nil && m.logger != nil {
		m.logger.Warnw("stats mirror write failed", "error", err, "breaker_state", m.breaker.GetState().String())
	}
	return err
}

// Close releases the underlying Redis connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
