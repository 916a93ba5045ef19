package monitoring

import (
	"signalbroker/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsObserver, exposing the
// connection/subscription/frame-routing counters an operator needs to
// watch a signalling broker: how many connections of each role are live,
// how subscriptions churn, and which frame types get routed or rejected.
type PrometheusCollector struct {
	connectionsByRole  *prometheus.GaugeVec
	connectionsTotal   *prometheus.CounterVec
	subscriptionsBound prometheus.Gauge
	subscriptionEvents *prometheus.CounterVec
	framesRouted       *prometheus.CounterVec
	framesRejected     *prometheus.CounterVec
	idleReaped         *prometheus.CounterVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsByRole: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalbroker_connections_current",
			Help: "Number of currently registered connections by role",
		}, []string{"role"}),

		connectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbroker_connections_total",
			Help: "Total connections registered by role, since process start",
		}, []string{"role"}),

		subscriptionsBound: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "signalbroker_subscriptions_current",
			Help: "Number of currently bound player-to-streamer subscriptions",
		}),

		subscriptionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbroker_subscription_events_total",
			Help: "Subscription bind/unbind events",
		}, []string{"event"}),

		framesRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbroker_frames_routed_total",
			Help: "Frames forwarded between a player and its streamer, by frame type",
		}, []string{"type"}),

		framesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbroker_frames_rejected_total",
			Help: "Frames rejected instead of routed, by reason",
		}, []string{"reason"}),

		idleReaped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbroker_idle_reaped_total",
			Help: "Connections closed by the idle reaper, by role",
		}, []string{"role"}),
	}
}

func (p *PrometheusCollector) ConnectionRegistered(role domain.Role) {
	p.connectionsByRole.WithLabelValues(role.String()).Inc()
	p.connectionsTotal.WithLabelValues(role.String()).Inc()
}

func (p *PrometheusCollector) ConnectionUnregistered(role domain.Role) {
	p.connectionsByRole.WithLabelValues(role.String()).Dec()
}

func (p *PrometheusCollector) SubscriptionBound() {
	p.subscriptionsBound.Inc()
	p.subscriptionEvents.WithLabelValues("bound").Inc()
}

func (p *PrometheusCollector) SubscriptionUnbound() {
	p.subscriptionsBound.Dec()
	p.subscriptionEvents.WithLabelValues("unbound").Inc()
}

func (p *PrometheusCollector) FrameRouted(frameType string) {
	p.framesRouted.WithLabelValues(frameType).Inc()
}

func (p *PrometheusCollector) FrameRejected(reason string) {
	p.framesRejected.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) IdleReaped(role domain.Role) {
	p.idleReaped.WithLabelValues(role.String()).Inc()
}
