package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard five-field expressions, an optional seconds
// field and @descriptors.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a cron expression.
func ParseSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("cron: parse %q: %w", expr, err)
	}
	return nil
}

// Runner manages periodic job execution using cron expressions.
// Each job is protected by a per-job mutex so a slow run makes the next
// firing skip instead of overlapping.
type Runner struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []Job
	names   map[string]struct{}
	locks   map[string]*sync.Mutex
	entries map[string]cron.EntryID
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewRunner creates a runner. Jobs must be registered before Start().
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		names:   make(map[string]struct{}),
		locks:   make(map[string]*sync.Mutex),
		entries: make(map[string]cron.EntryID),
		logger:  logger.With("component", "cron"),
	}
}

// RegisterJob adds a job to the runner. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (r *Runner) RegisterJob(j Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := j.Name()
	if _, exists := r.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	r.names[name] = struct{}{}
	r.locks[name] = &sync.Mutex{}
	r.jobs = append(r.jobs, j)
	return nil
}

// Len returns the number of registered jobs.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Start begins executing registered jobs. Returns an error if any job has
// an invalid schedule expression.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.cron = cron.New(cron.WithParser(parser))

	for _, job := range r.jobs {
		id, err := r.cron.AddFunc(job.Schedule(), r.guard(ctx, job))
		if err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
		r.entries[job.Name()] = id
	}

	r.cron.Start()
	r.logger.Info("cron runner started", "jobs", len(r.jobs))
	return nil
}

// guard wraps job so that overlapping firings are skipped and errors logged.
func (r *Runner) guard(ctx context.Context, job Job) func() {
	lock := r.locks[job.Name()]
	return func() {
		if !lock.TryLock() {
			r.logger.Warn("cron job still running, skipping", "job", job.Name())
			return
		}
		defer lock.Unlock()

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			r.logger.Error("cron job failed", "job", job.Name(), "error", err)
			return
		}
		r.logger.Debug("cron job completed", "job", job.Name(), "took", time.Since(start))
	}
}

// Next returns the next scheduled run of every job. Empty before Start.
func (r *Runner) Next() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]time.Time, len(r.entries))
	if r.cron == nil {
		return next
	}
	for name, id := range r.entries {
		next[name] = r.cron.Entry(id).Next
	}
	return next
}

// Stop shuts down the runner, waiting for in-flight jobs.
func (r *Runner) Stop(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	if r.cron != nil {
		<-r.cron.Stop().Done()
		r.logger.Info("cron runner stopped")
	}
	return nil
}
