// Package runtime assembles the host loop, the scheduler, the entity world
// and the periodic producers into one unit. Its exported methods are safe
// for concurrent use: each hops onto the host loop goroutine.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/tickwork/internal/cron"
	"github.com/flemzord/tickwork/internal/hostloop"
	"github.com/flemzord/tickwork/internal/scheduler"
	"github.com/flemzord/tickwork/internal/storage"
	"github.com/flemzord/tickwork/internal/world"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ErrInvalidJob is returned by SubmitJob for an empty name or a
// non-positive unit count.
var ErrInvalidJob = errors.New("runtime: job needs a name and a positive unit count")

// JobTicket identifies a submitted job.
type JobTicket struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Units int       `json:"units"`
}

// Tunables echoes the scheduler configuration in status reports.
type Tunables struct {
	WorkUnitsPerTick int    `json:"work_units_per_tick"`
	MaxJobsPerTick   int    `json:"max_jobs_per_tick"`
	DiskCooldown     string `json:"disk_cooldown"`
	TickInterval     string `json:"tick_interval"`
	AutoConnect      bool   `json:"auto_connect"`
}

// Status is a point-in-time view of the runtime.
type Status struct {
	RunID         string               `json:"run_id"`
	StartedAt     time.Time            `json:"started_at"`
	UptimeSeconds float64              `json:"uptime_seconds"`
	Automated     bool                 `json:"automated"`
	Jobs          int                  `json:"jobs"`
	DiskQueue     int                  `json:"disk_queue"`
	Compacting    bool                 `json:"compacting"`
	Loop          hostloop.Stats       `json:"loop"`
	World         world.Stats          `json:"world"`
	Tunables      Tunables             `json:"tunables"`
	NextRuns      map[string]time.Time `json:"next_runs,omitempty"`
}

// Runtime owns the host loop and everything that runs on it.
type Runtime struct {
	cfg      Config
	logger   *slog.Logger
	runID    uuid.UUID
	registry *prometheus.Registry

	loop  *hostloop.Loop
	sched *scheduler.Scheduler
	cron  *cron.Runner

	// Owned by the loop goroutine once started.
	world      *world.World
	compaction *world.CompactionJob

	mu           sync.Mutex
	startedAt    time.Time
	manualDriver func()
}

// New builds a stopped runtime.
func New(cfg Config, logger *slog.Logger) *Runtime {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runtime{
		cfg:      cfg,
		logger:   logger,
		runID:    uuid.New(),
		registry: prometheus.NewRegistry(),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r.loop = hostloop.New(hostloop.Config{
		Interval: cfg.TickInterval,
		Dilation: cfg.Dilation,
		Logger:   logger.With("component", "hostloop"),
	})

	sc := cfg.schedulerConfig()
	sc.Logger = logger
	sc.Metrics = scheduler.NewMetrics(r.registry)
	if cfg.autoConnect() {
		sc.TickSource = r.loop
	}
	r.sched = scheduler.New(sc)
	r.cron = cron.NewRunner(logger)
	return r
}

// Registry returns the prometheus registry holding the runtime metrics.
func (r *Runtime) Registry() *prometheus.Registry { return r.registry }

// RunID identifies this runtime instance in logs and status reports.
func (r *Runtime) RunID() string { return r.runID.String() }

// Start creates the world on top of store, starts the host loop and then
// the periodic producers.
func (r *Runtime) Start(ctx context.Context, store storage.Store) error {
	if store == nil {
		store = storage.Discard
	}
	r.world = world.New(world.Config{
		Scheduler: r.sched,
		Store:     store,
		Logger:    r.logger,
	})

	if err := r.loop.Start(ctx); err != nil {
		return fmt.Errorf("runtime: start host loop: %w", err)
	}

	if !r.cfg.autoConnect() {
		driver := r.loop.Subscribe(func(delta time.Duration, _ float64) {
			r.sched.ManualTick(delta)
		})
		r.mu.Lock()
		r.manualDriver = driver
		r.mu.Unlock()
	}

	if err := r.registerCron(); err != nil {
		_ = r.halt(ctx)
		return err
	}
	if r.cron.Len() > 0 {
		if err := r.cron.Start(); err != nil {
			_ = r.halt(ctx)
			return err
		}
	}

	r.mu.Lock()
	r.startedAt = time.Now()
	r.mu.Unlock()

	r.logger.Info("runtime started",
		"run_id", r.runID,
		"auto_connect", r.cfg.autoConnect(),
		"work_units_per_tick", *r.cfg.WorkUnitsPerTick,
		"max_jobs_per_tick", *r.cfg.MaxJobsPerTick,
		"disk_cooldown", *r.cfg.DiskCooldown,
	)
	return nil
}

func (r *Runtime) registerCron() error {
	if r.cfg.Autosave != "" {
		err := r.cron.RegisterJob(&cron.AutosaveJob{
			Target:       r,
			Logger:       r.logger,
			ScheduleExpr: r.cfg.Autosave,
		})
		if err != nil {
			return err
		}
	}
	if r.cfg.Compaction != "" {
		err := r.cron.RegisterJob(&cron.CompactionJob{
			Target:       r,
			Logger:       r.logger,
			ScheduleExpr: r.cfg.Compaction,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop halts the producers and then the host loop. Work still queued is
// dropped and the scheduler no longer reports itself automated.
func (r *Runtime) Stop(ctx context.Context) error {
	_ = r.cron.Stop(ctx)
	if err := r.halt(ctx); err != nil {
		return err
	}
	r.logger.Info("runtime stopped", "run_id", r.runID)
	return nil
}

// halt removes the manual driver, stops the host loop and, once the loop
// goroutine is gone, detaches the scheduler from it.
func (r *Runtime) halt(ctx context.Context) error {
	r.mu.Lock()
	if r.manualDriver != nil {
		r.manualDriver()
		r.manualDriver = nil
	}
	r.mu.Unlock()

	if err := r.loop.Stop(ctx); err != nil && !errors.Is(err, hostloop.ErrNotStarted) {
		return err
	}
	r.sched.Detach()
	return nil
}

// Status collects scheduler and world state from the loop goroutine.
func (r *Runtime) Status(ctx context.Context) (Status, error) {
	st := Status{
		RunID: r.runID.String(),
		Tunables: Tunables{
			WorkUnitsPerTick: *r.cfg.WorkUnitsPerTick,
			MaxJobsPerTick:   *r.cfg.MaxJobsPerTick,
			DiskCooldown:     r.cfg.DiskCooldown.String(),
			TickInterval:     r.cfg.TickInterval.String(),
			AutoConnect:      r.cfg.autoConnect(),
		},
		NextRuns: r.cron.Next(),
	}

	r.mu.Lock()
	st.StartedAt = r.startedAt
	r.mu.Unlock()
	if !st.StartedAt.IsZero() {
		st.UptimeSeconds = time.Since(st.StartedAt).Truncate(time.Second).Seconds()
	}

	err := r.loop.Do(ctx, func() {
		st.Jobs = r.sched.JobsAmount()
		st.DiskQueue = r.sched.DiskQueueSize()
		st.Automated = r.sched.IsAutomated()
		st.Compacting = r.compaction != nil && !r.compaction.Done()
		st.World = r.world.Stats()
	})
	st.Loop = r.loop.Stats()
	return st, err
}

// SubmitJob registers a job that consumes units of work.
func (r *Runtime) SubmitJob(ctx context.Context, name string, units int) (JobTicket, error) {
	if name == "" || units <= 0 {
		return JobTicket{}, ErrInvalidJob
	}
	ticket := JobTicket{ID: uuid.New(), Name: name, Units: units}
	logger := r.logger.With("job", name, "job_id", ticket.ID)

	err := r.loop.Do(ctx, func() {
		r.sched.AddJob(world.NewWorkJob(name, units, func() {
			logger.Info("job completed", "units", units)
		}))
	})
	if err != nil {
		return JobTicket{}, err
	}
	logger.Debug("job submitted", "units", units)
	return ticket, nil
}

// Spawn creates an entity.
func (r *Runtime) Spawn(ctx context.Context, name string) (world.EntityInfo, error) {
	var e world.EntityInfo
	err := r.loop.Do(ctx, func() { e = r.world.Spawn(name) })
	return e, err
}

// Despawn removes an entity. Saves queued for it are dropped.
func (r *Runtime) Despawn(ctx context.Context, index int) error {
	var opErr error
	if err := r.loop.Do(ctx, func() { opErr = r.world.Despawn(index) }); err != nil {
		return err
	}
	return opErr
}

// Touch mutates an entity's counter.
func (r *Runtime) Touch(ctx context.Context, index, n int) (world.EntityInfo, error) {
	var (
		e     world.EntityInfo
		opErr error
	)
	if err := r.loop.Do(ctx, func() { e, opErr = r.world.Touch(index, n) }); err != nil {
		return world.EntityInfo{}, err
	}
	return e, opErr
}

// Save queues a throttled save of one entity and returns the request ID.
func (r *Runtime) Save(ctx context.Context, index int) (uuid.UUID, error) {
	var (
		id    uuid.UUID
		opErr error
	)
	err := r.loop.Do(ctx, func() {
		req, err := r.world.Save(index)
		if err != nil {
			opErr = err
			return
		}
		id = req.ID()
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, opErr
}

// SaveAll queues a save of every entity. It implements cron.Saver.
func (r *Runtime) SaveAll(ctx context.Context) (int, error) {
	var n int
	err := r.loop.Do(ctx, func() { n = r.world.SaveAll() })
	return n, err
}

// Entities lists the live entities.
func (r *Runtime) Entities(ctx context.Context) ([]world.EntityInfo, error) {
	var list []world.EntityInfo
	err := r.loop.Do(ctx, func() { list = r.world.List() })
	return list, err
}

// EnqueueCompaction adds a snapshot compaction job unless one is still
// running. It implements cron.Compactor.
func (r *Runtime) EnqueueCompaction(ctx context.Context) error {
	return r.loop.Do(ctx, func() {
		if r.compaction != nil && !r.compaction.Done() {
			r.logger.Debug("compaction already running")
			return
		}
		r.compaction = world.NewCompactionJob(r.world.Store(), r.cfg.CompactionBatch, r.logger)
		r.sched.AddJob(r.compaction)
	})
}

// Compile-time interface checks.
var (
	_ cron.Saver     = (*Runtime)(nil)
	_ cron.Compactor = (*Runtime)(nil)
)
