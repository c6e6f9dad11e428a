package world

import (
	"context"
	"log/slog"
	"time"

	"github.com/flemzord/tickwork/internal/scheduler"
	"github.com/flemzord/tickwork/internal/storage"
)

// CostPerRow is the work units charged for deleting one snapshot.
const CostPerRow = 100

// CompactionJob removes superseded snapshots a bounded batch at a time.
// Each DoWork deletes at most units/CostPerRow rows, and never more than
// Batch when Batch is positive. At least one row is attempted per call so
// a small budget still makes progress.
type CompactionJob struct {
	Batch int

	store   storage.Store
	logger  *slog.Logger
	timeout time.Duration
	removed int
	done    bool
}

// Compile-time interface check.
var _ scheduler.Job = (*CompactionJob)(nil)

// NewCompactionJob returns a job compacting store.
func NewCompactionJob(store storage.Store, batch int, logger *slog.Logger) *CompactionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompactionJob{
		Batch:   batch,
		store:   store,
		logger:  logger.With("component", "compaction"),
		timeout: defaultSaveTimeout,
	}
}

// Done implements scheduler.Job.
func (j *CompactionJob) Done() bool { return j.done }

// DoWork implements scheduler.Job.
func (j *CompactionJob) DoWork(units int) {
	if j.done {
		return
	}
	limit := max(units/CostPerRow, 1)
	if j.Batch > 0 {
		limit = min(limit, j.Batch)
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.store.Compact(ctx, limit)
	j.removed += n
	if err != nil {
		j.logger.Error("compaction failed", "removed", j.removed, "error", err)
		j.done = true
		return
	}
	if n < limit {
		j.done = true
		j.logger.Info("compaction finished", "removed", j.removed)
	}
}

// Removed returns the number of snapshots deleted so far.
func (j *CompactionJob) Removed() int { return j.removed }

// NewWorkJob returns a job that consumes units of work and then calls
// onDone, if set.
func NewWorkJob(name string, units int, onDone func()) *scheduler.UnitJob {
	j := scheduler.NewUnitJob(name, units)
	if onDone != nil {
		j.OnComplete = func(*scheduler.UnitJob) { onDone() }
	}
	return j
}
