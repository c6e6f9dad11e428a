package cron

import (
	"context"
	"fmt"
	"log/slog"
)

// Saver queues a save of every live entity. Implemented by the runtime.
type Saver interface {
	SaveAll(ctx context.Context) (int, error)
}

// Compactor queues a snapshot compaction job. Implemented by the runtime.
type Compactor interface {
	EnqueueCompaction(ctx context.Context) error
}

// AutosaveJob periodically requests a save of every entity. The saves go
// through the scheduler's disk throttle like any other request.
type AutosaveJob struct {
	Target       Saver
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "@every 1m"
}

// Compile-time interface check.
var _ Job = (*AutosaveJob)(nil)

// Name implements Job.
func (j *AutosaveJob) Name() string { return "autosave" }

// Schedule implements Job.
func (j *AutosaveJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@every 1m"
}

// Run queues the saves.
func (j *AutosaveJob) Run(ctx context.Context) error {
	n, err := j.Target.SaveAll(ctx)
	if err != nil {
		return fmt.Errorf("cron: autosave: %w", err)
	}
	if n > 0 {
		j.Logger.Info("autosave queued", "entities", n)
	}
	return nil
}

// CompactionJob periodically enqueues a snapshot compaction job on the
// scheduler.
type CompactionJob struct {
	Target       Compactor
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*CompactionJob)(nil)

// Name implements Job.
func (j *CompactionJob) Name() string { return "compaction" }

// Schedule implements Job.
func (j *CompactionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run enqueues the compaction.
func (j *CompactionJob) Run(ctx context.Context) error {
	if err := j.Target.EnqueueCompaction(ctx); err != nil {
		return fmt.Errorf("cron: compaction: %w", err)
	}
	j.Logger.Debug("compaction enqueued")
	return nil
}
