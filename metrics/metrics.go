// Package metrics exposes the relay's Prometheus instrumentation. All
// record methods are safe on a nil *Metrics, so instrumentation stays
// optional for embedders and tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the relay server's Prometheus collectors.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	TotalConnections   prometheus.Counter
	FramesRelayed      prometheus.Counter
	BytesRelayed       prometheus.Counter
	FramesSuppressed   prometheus.Counter
	CapacityRejections prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
}

// NewMetrics creates the relay metrics and registers them with reg.
//
// Parameters:
//   - reg: Registerer to register all collectors with, e.g.
//     prometheus.DefaultRegisterer
//
// Returns:
//   - The registered Metrics instance
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Number of currently registered sessions",
		}),

		TotalConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total number of accepted connections",
		}),

		FramesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_frames_relayed_total",
			Help: "Total per-recipient frame deliveries, including server-originated frames",
		}),

		BytesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_bytes_relayed_total",
			Help: "Total per-recipient frame bytes delivered, including server-originated frames",
		}),

		FramesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_frames_suppressed_total",
			Help: "Total number of frames dropped by the packet handler or decode failures",
		}),

		CapacityRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_capacity_rejections_total",
			Help: "Total number of connections refused because the server was full",
		}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_errors_total",
			Help: "Total number of errors by type",
		}, []string{"error_type"}),
	}

	reg.MustRegister(
		m.ActiveSessions,
		m.TotalConnections,
		m.FramesRelayed,
		m.BytesRelayed,
		m.FramesSuppressed,
		m.CapacityRejections,
		m.ErrorsTotal,
	)

	return m
}

// RecordConnection records a newly bound session.
func (m *Metrics) RecordConnection() {
	if m == nil {
		return
	}

	m.TotalConnections.Inc()
	m.ActiveSessions.Inc()
}

// RecordDisconnection records a removed session.
func (m *Metrics) RecordDisconnection() {
	if m == nil {
		return
	}

	m.ActiveSessions.Dec()
}

// RecordRelay records one frame of the given size delivered to the given
// number of recipients.
func (m *Metrics) RecordRelay(frameBytes, recipients int) {
	if m == nil || recipients <= 0 {
		return
	}

	m.FramesRelayed.Add(float64(recipients))
	m.BytesRelayed.Add(float64(frameBytes * recipients))
}

// RecordSuppressed records a frame dropped instead of relayed.
func (m *Metrics) RecordSuppressed() {
	if m == nil {
		return
	}

	m.FramesSuppressed.Inc()
}

// RecordCapacityRejection records a connection refused at full capacity.
func (m *Metrics) RecordCapacityRejection() {
	if m == nil {
		return
	}

	m.CapacityRejections.Inc()
}

// RecordError records an error by type.
func (m *Metrics) RecordError(errorType string) {
	if m == nil {
		return
	}

	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
