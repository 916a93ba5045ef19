package metrics

import (
	"signalbroker/internal/core/domain"
	"signalbroker/internal/core/ports"
)

// MultiObserver fans a single observation out to every wrapped observer,
// letting the Prometheus collector (this process's own metrics) and the
// Redis-batched fleet mirror (optional, best-effort) both subscribe to
// the same Registry/SubscriptionGraph events without either knowing the
// other exists.
type MultiObserver struct {
	observers []ports.MetricsObserver
}

func NewMultiObserver(observers ...ports.MetricsObserver) *MultiObserver {
	return &MultiObserver{observers: observers}
}

func (m *MultiObserver) ConnectionRegistered(role domain.Role) {
	for _, o := range m.observers {
		o.ConnectionRegistered(role)
	}
}

func (m *MultiObserver) ConnectionUnregistered(role domain.Role) {
	for _, o := range m.observers {
		o.ConnectionUnregistered(role)
	}
}

func (m *MultiObserver) SubscriptionBound() {
	for _, o := range m.observers {
		o.SubscriptionBound()
	}
}

func (m *MultiObserver) SubscriptionUnbound() {
	for _, o := range m.observers {
		o.SubscriptionUnbound()
	}
}

func (m *MultiObserver) FrameRouted(frameType string) {
	for _, o := range m.observers {
		o.FrameRouted(frameType)
	}
}

func (m *MultiObserver) FrameRejected(reason string) {
	for _, o := range m.observers {
		o.FrameRejected(reason)
	}
}

func (m *MultiObserver) IdleReaped(role domain.Role) {
	for _, o := range m.observers {
		o.IdleReaped(role)
	}
}
