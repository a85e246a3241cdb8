// Package metrics implements the Metrics Accumulator: a thread-safe set
// of scalar and labeled Prometheus counters/gauges. Grounded on the
// teacher's internal/infrastructure/monitoring/prometheus_collector.go
// for the promauto construction style, adapted to a dedicated
// prometheus.Registry (rather than the default global one) so the
// process can expose exactly the metric families spec'd, nothing more.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/gauge family exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	connectionsTotal   prometheus.Counter
	activeConnections  prometheus.Gauge
	messagesTotal      prometheus.Counter
	authFailuresTotal  prometheus.Counter
	rateLimitedTotal   prometheus.Counter
	relayUsageTotal    prometheus.Counter
	iceStateTotal      *prometheus.CounterVec
	failureReasonTotal *prometheus.CounterVec
	regionCarrierTotal *prometheus.CounterVec
}

// New builds a Metrics bound to a fresh registry, isolated from the
// default global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		connectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bs_ws_connections_total",
			Help: "Total signaling connections admitted.",
		}),
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "bs_ws_active_connections",
			Help: "Currently live signaling connections.",
		}),
		messagesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bs_ws_messages_total",
			Help: "Total inbound signaling messages processed.",
		}),
		authFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bs_ws_auth_failures_total",
			Help: "Total credential verification failures.",
		}),
		rateLimitedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bs_ws_rate_limited_total",
			Help: "Total requests rejected by the rate limiter.",
		}),
		relayUsageTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bs_relay_usage_total",
			Help: "Total telemetry reports indicating TURN relay usage.",
		}),
		iceStateTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bs_ice_state_total",
			Help: "Total telemetry reports by ICE connection state.",
		}, []string{"ice_state"}),
		failureReasonTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bs_failure_reason_total",
			Help: "Total telemetry reports by failure reason.",
		}, []string{"reason"}),
		regionCarrierTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bs_region_carrier_total",
			Help: "Total telemetry reports by region/carrier.",
		}, []string{"region", "carrier"}),
	}
}

// Registry returns the dedicated registry for wiring into promhttp.Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) IncConnections()  { m.connectionsTotal.Inc() }
func (m *Metrics) IncActive()       { m.activeConnections.Inc() }
func (m *Metrics) DecActive()       { m.activeConnections.Dec() }
func (m *Metrics) IncMessages()     { m.messagesTotal.Inc() }
func (m *Metrics) IncAuthFailure()  { m.authFailuresTotal.Inc() }
func (m *Metrics) IncRateLimited()  { m.rateLimitedTotal.Inc() }
func (m *Metrics) IncRelayUsage()   { m.relayUsageTotal.Inc() }

func (m *Metrics) IncICEState(state string) {
	if state == "" {
		state = "unknown"
	}
	m.iceStateTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) IncFailureReason(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.failureReasonTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncRegionCarrier(region, carrier string) {
	if region == "" {
		region = "unknown"
	}
	if carrier == "" {
		carrier = "unknown"
	}
	m.regionCarrierTotal.WithLabelValues(region, carrier).Inc()
}
