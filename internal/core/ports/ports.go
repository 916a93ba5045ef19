package ports

import (
	"context"

	"signalbroker/internal/core/domain"
)

// MetricsObserver is the seam between the core services and whatever
// metrics backend is wired in (Prometheus in this repo). The core never
// imports a metrics client directly.
type MetricsObserver interface {
	ConnectionRegistered(role domain.Role)
	ConnectionUnregistered(role domain.Role)
	SubscriptionBound()
	SubscriptionUnbound()
	FrameRouted(frameType string)
	FrameRejected(reason string)
	IdleReaped(role domain.Role)
}

// StatsMirror is an optional, non-authoritative sink that periodically
// receives a ConnectionStats snapshot. It never feeds decisions back into
// the registry — it exists purely so an external dashboard can observe a
// fleet of brokers, each of which remains independently authoritative for
// its own connections.
type StatsMirror interface {
	Mirror(ctx context.Context, stats domain.ConnectionStats) error
}
