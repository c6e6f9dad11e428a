package gateway

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks gateway-level counters using atomic operations for lock-free concurrency.
type Metrics struct {
	requests atomic.Int64
	errors   atomic.Int64
	streams  atomic.Int64
	frames   atomic.Int64
}

// RecordRequest records a served request and whether it failed (status >= 500).
func (m *Metrics) RecordRequest(failed bool) {
	m.requests.Add(1)
	if failed {
		m.errors.Add(1)
	}
}

func (m *Metrics) streamOpened() { m.streams.Add(1) }
func (m *Metrics) streamClosed() { m.streams.Add(-1) }
func (m *Metrics) frameSent()    { m.frames.Add(1) }

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:      m.requests.Load(),
		Errors:        m.errors.Load(),
		ActiveStreams: m.streams.Load(),
		FramesSent:    m.frames.Load(),
	}
}

// Collectors exposes the counters as prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "tickwork", Subsystem: "gateway", Name: "requests_total",
			Help: "HTTP requests served by the gateway.",
		}, func() float64 { return float64(m.requests.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "tickwork", Subsystem: "gateway", Name: "errors_total",
			Help: "Gateway responses with a 5xx status.",
		}, func() float64 { return float64(m.errors.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "tickwork", Subsystem: "gateway", Name: "status_streams",
			Help: "Open /ws/status connections.",
		}, func() float64 { return float64(m.streams.Load()) }),
	}
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Requests      int64 `json:"requests"`
	Errors        int64 `json:"errors"`
	ActiveStreams int64 `json:"active_streams"`
	FramesSent    int64 `json:"frames_sent"`
}
