package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes scheduler counters as Prometheus collectors. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Ticks          prometheus.Counter
	WorkCalls      prometheus.Counter
	JobsAdded      prometheus.Counter
	JobsCompleted  prometheus.Counter
	DiskRequests   prometheus.Counter
	DiskCallbacks  prometheus.Counter
	DiskStaleDrops prometheus.Counter
	ActiveJobs     prometheus.Gauge
	DiskQueueDepth prometheus.Gauge
}

// NewMetrics creates the scheduler collectors and registers them with reg
// when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickwork", Subsystem: "scheduler", Name: "ticks_total",
			Help: "Ticks processed by the scheduler.",
		}),
		WorkCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickwork", Subsystem: "scheduler", Name: "work_calls_total",
			Help: "DoWork invocations handed to jobs.",
		}),
		JobsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickwork", Subsystem: "scheduler", Name: "jobs_added_total",
			Help: "Jobs accepted by AddJob.",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickwork", Subsystem: "scheduler", Name: "jobs_completed_total",
			Help: "Completed jobs pruned from the active list.",
		}),
		DiskRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickwork", Subsystem: "disk", Name: "requests_total",
			Help: "Disk requests queued.",
		}),
		DiskCallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickwork", Subsystem: "disk", Name: "callbacks_total",
			Help: "Disk callbacks fired.",
		}),
		DiskStaleDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickwork", Subsystem: "disk", Name: "stale_dropped_total",
			Help: "Disk requests dropped because their owner was released.",
		}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tickwork", Subsystem: "scheduler", Name: "active_jobs",
			Help: "Jobs in the active list.",
		}),
		DiskQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tickwork", Subsystem: "disk", Name: "queue_depth",
			Help: "Disk requests waiting in the queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Ticks, m.WorkCalls, m.JobsAdded, m.JobsCompleted,
			m.DiskRequests, m.DiskCallbacks, m.DiskStaleDrops,
			m.ActiveJobs, m.DiskQueueDepth,
		)
	}
	return m
}

func (m *Metrics) tick() {
	if m != nil {
		m.Ticks.Inc()
	}
}

func (m *Metrics) workCalls(n int) {
	if m != nil {
		m.WorkCalls.Add(float64(n))
	}
}

func (m *Metrics) jobAdded() {
	if m != nil {
		m.JobsAdded.Inc()
	}
}

func (m *Metrics) jobsCompleted(n int) {
	if m != nil {
		m.JobsCompleted.Add(float64(n))
	}
}

func (m *Metrics) diskRequested() {
	if m != nil {
		m.DiskRequests.Inc()
	}
}

func (m *Metrics) diskFired() {
	if m != nil {
		m.DiskCallbacks.Inc()
	}
}

func (m *Metrics) diskDropped(n int) {
	if m != nil {
		m.DiskStaleDrops.Add(float64(n))
	}
}

func (m *Metrics) observe(jobs, queue int) {
	if m != nil {
		m.ActiveJobs.Set(float64(jobs))
		m.DiskQueueDepth.Set(float64(queue))
	}
}
