package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/flemzord/tickwork/internal/generation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/tickwork/internal/scheduler"

// Default tunables.
const (
	DefaultWorkUnitsPerTick = 10000
	DefaultMaxJobsPerTick   = 5
	DefaultDiskCooldown     = 250 * time.Millisecond
)

// Config holds the scheduler tunables and its optional collaborators.
type Config struct {
	// WorkUnitsPerTick is the budget split across the jobs serviced in a tick.
	WorkUnitsPerTick int

	// MaxJobsPerTick caps how many distinct jobs run per tick. Zero or a
	// negative value disables job work entirely.
	MaxJobsPerTick int

	// DiskCooldown is the minimum spacing between two disk callbacks.
	// Zero or a negative value disables throttling: every queued request
	// drains on the next tick.
	DiskCooldown time.Duration

	// TickSource, when set, is subscribed to while work is pending.
	TickSource TickSource

	Logger  *slog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// DefaultConfig returns the default tunables with no collaborators.
func DefaultConfig() Config {
	return Config{
		WorkUnitsPerTick: DefaultWorkUnitsPerTick,
		MaxJobsPerTick:   DefaultMaxJobsPerTick,
		DiskCooldown:     DefaultDiskCooldown,
	}
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(tracerName)
	}
	return c
}

// Scheduler owns the active job list, the disk request queue and the
// cooldown timer. It is not safe for concurrent use: every method must be
// called from the goroutine that delivers ticks.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger

	jobs  jobList
	disk  diskQueue
	timer time.Duration

	unsubscribe func()
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "scheduler"),
	}
}

// AddJob registers j. Registering the same job twice is a no-op.
func (s *Scheduler) AddJob(j Job) {
	if j == nil {
		return
	}
	if !s.jobs.add(j) {
		s.logger.Debug("job already registered")
		return
	}
	s.cfg.Metrics.jobAdded()
	s.updateSubscription()
}

// RequestDiskAccess queues a disk request owned by h and returns its
// registration so the caller can assign the callback. It returns nil, and
// queues nothing, when h is nil.
func (s *Scheduler) RequestDiskAccess(h generation.Stamped) *DiskRequest {
	owner, ok := generation.Capture(h)
	if !ok {
		s.logger.Debug("disk request rejected: nil handle")
		return nil
	}
	req := &DiskRequest{id: uuid.New()}
	s.disk.push(diskEntry{req: req, owner: owner})
	s.cfg.Metrics.diskRequested()
	s.updateSubscription()
	return req
}

// JobsAmount prunes completed jobs and returns the number still active.
func (s *Scheduler) JobsAmount() int {
	s.pruneJobs()
	return s.jobs.len()
}

// DiskQueueSize drops requests whose owner is gone, without firing them,
// and returns the number still queued.
func (s *Scheduler) DiskQueueSize() int {
	s.pruneDisk()
	return s.disk.len()
}

// IsAutomated reports whether the scheduler is currently subscribed to its
// tick source.
func (s *Scheduler) IsAutomated() bool {
	return s.unsubscribe != nil
}

// Metrics returns the collectors the scheduler reports to, or nil.
func (s *Scheduler) Metrics() *Metrics { return s.cfg.Metrics }

// ManualTick advances the scheduler by delta with no time dilation.
func (s *Scheduler) ManualTick(delta time.Duration) {
	s.Tick(delta, 1)
}

// Tick runs one scheduling cycle: disk cooldown and drain, then job
// budgeting, then subscription bookkeeping. Dilation is recorded but does
// not scale the cooldown, which follows wall-clock time.
func (s *Scheduler) Tick(delta time.Duration, dilation float64) {
	_, span := s.cfg.Tracer.Start(context.Background(), "scheduler.tick",
		trace.WithAttributes(
			attribute.Int64("tick.delta_us", delta.Microseconds()),
			attribute.Float64("tick.dilation", dilation),
		),
	)
	defer span.End()

	s.cfg.Metrics.tick()

	fired, dropped := s.tickDisk(delta)
	visited := s.tickJobs()

	s.updateSubscription()
	s.cfg.Metrics.observe(s.jobs.len(), s.disk.len())

	span.SetAttributes(
		attribute.Int("jobs.visited", visited),
		attribute.Int("jobs.active", s.jobs.len()),
		attribute.Int("disk.fired", fired),
		attribute.Int("disk.dropped", dropped),
		attribute.Int("disk.queued", s.disk.len()),
	)
}

// Detach drops the tick source subscription, if any. Pending work stays
// queued and a later mutation may subscribe again.
func (s *Scheduler) Detach() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Scheduler) tickDisk(delta time.Duration) (fired, dropped int) {
	if s.timer > 0 {
		s.timer -= delta
	}
	if s.timer > 0 || s.disk.len() == 0 {
		return 0, 0
	}
	s.timer = s.cfg.DiskCooldown

	n := 1
	if s.cfg.DiskCooldown <= 0 {
		n = s.disk.len()
	}
	return s.drain(n)
}

// drain pops n entries from the head of the queue. Entries are removed
// before their callback runs, so a callback may queue new requests.
func (s *Scheduler) drain(n int) (fired, dropped int) {
	for range n {
		e, ok := s.disk.pop()
		if !ok {
			break
		}
		if !e.owner.Live() {
			dropped++
			s.logger.Debug("disk request dropped: owner released",
				"request", e.req.id,
				"generation", e.owner.Stamp(),
			)
			continue
		}
		if e.req.Callback == nil {
			continue
		}
		e.req.Callback()
		fired++
		s.cfg.Metrics.diskFired()
	}
	s.cfg.Metrics.diskDropped(dropped)
	return fired, dropped
}

func (s *Scheduler) tickJobs() int {
	s.pruneJobs()

	n := min(s.jobs.len(), s.cfg.MaxJobsPerTick)
	if n <= 0 {
		return 0
	}
	units := max(s.cfg.WorkUnitsPerTick, 0) / n

	visited := s.jobs.run(n, units)
	s.cfg.Metrics.workCalls(visited)
	return visited
}

func (s *Scheduler) pruneJobs() {
	if n := s.jobs.prune(); n > 0 {
		s.cfg.Metrics.jobsCompleted(n)
	}
}

func (s *Scheduler) pruneDisk() {
	dropped := s.disk.pruneStale()
	for _, e := range dropped {
		s.logger.Debug("disk request pruned: owner released", "request", e.req.id)
	}
	s.cfg.Metrics.diskDropped(len(dropped))
}

// updateSubscription attaches to the tick source while work is pending and
// detaches once both the job list and the disk queue are empty.
func (s *Scheduler) updateSubscription() {
	pending := s.jobs.len() > 0 || s.disk.len() > 0
	switch {
	case pending && s.unsubscribe == nil:
		if s.cfg.TickSource == nil || !s.cfg.TickSource.Available() {
			return
		}
		s.unsubscribe = s.cfg.TickSource.Subscribe(s.Tick)
		s.logger.Debug("attached to tick source")
	case !pending && s.unsubscribe != nil:
		s.Detach()
		s.logger.Debug("detached from tick source")
	}
}
