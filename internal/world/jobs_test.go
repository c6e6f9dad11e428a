package world

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/tickwork/internal/scheduler"
	"github.com/flemzord/tickwork/internal/storage"
)

func seedStore(t *testing.T, perEntity map[string]int) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	for entity, n := range perEntity {
		for range n {
			if err := store.Save(context.Background(), storage.Snapshot{Entity: entity}); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
	}
	return store
}

func TestCompactionJob_BatchesByBudget(t *testing.T) {
	t.Parallel()

	store := seedStore(t, map[string]int{"a": 6, "b": 1})
	job := NewCompactionJob(store, 0, discardLogger())

	// 250 units buy two rows per call.
	job.DoWork(250)
	if job.Removed() != 2 || job.Done() {
		t.Fatalf("after first call removed=%d done=%v", job.Removed(), job.Done())
	}
	job.DoWork(250)
	job.DoWork(250)
	if job.Removed() != 5 {
		t.Errorf("removed = %d, want 5", job.Removed())
	}
	if !job.Done() {
		t.Error("job should finish once a batch comes back short")
	}
	if store.Count() != 2 {
		t.Errorf("store count = %d, want 2", store.Count())
	}
}

func TestCompactionJob_BatchCap(t *testing.T) {
	t.Parallel()

	store := seedStore(t, map[string]int{"a": 10})
	job := NewCompactionJob(store, 3, discardLogger())

	job.DoWork(100000)
	if job.Removed() != 3 {
		t.Errorf("removed = %d, want 3", job.Removed())
	}
}

func TestCompactionJob_SmallBudgetStillProgresses(t *testing.T) {
	t.Parallel()

	store := seedStore(t, map[string]int{"a": 3})
	job := NewCompactionJob(store, 0, discardLogger())

	job.DoWork(1)
	if job.Removed() != 1 {
		t.Errorf("removed = %d, want 1", job.Removed())
	}
}

type brokenCompactor struct {
	storage.Store
}

func (brokenCompactor) Compact(context.Context, int) (int, error) {
	return 0, errors.New("locked")
}

func TestCompactionJob_ErrorFinishes(t *testing.T) {
	t.Parallel()

	job := NewCompactionJob(brokenCompactor{Store: storage.Discard}, 0, discardLogger())
	job.DoWork(1000)
	if !job.Done() {
		t.Error("job should stop after a store error")
	}
}

func TestCompactionJob_UnderScheduler(t *testing.T) {
	t.Parallel()

	store := seedStore(t, map[string]int{"a": 40, "b": 40})
	cfg := scheduler.DefaultConfig()
	cfg.Logger = discardLogger()
	sched := scheduler.New(cfg)

	job := NewCompactionJob(store, 0, discardLogger())
	sched.AddJob(job)
	// A competing job halves the compaction budget to 5000 units, 50 rows.
	sched.AddJob(NewWorkJob("load", 1<<30, nil))

	sched.ManualTick(time.Millisecond)
	if job.Removed() != 50 {
		t.Errorf("first tick removed %d, want 50", job.Removed())
	}
	sched.ManualTick(time.Millisecond)
	if !job.Done() || job.Removed() != 78 {
		t.Errorf("after second tick removed=%d done=%v, want 78/true", job.Removed(), job.Done())
	}
	if sched.JobsAmount() != 1 {
		t.Errorf("JobsAmount = %d, want 1", sched.JobsAmount())
	}
}

func TestNewWorkJob_CallsOnDone(t *testing.T) {
	t.Parallel()

	called := 0
	j := NewWorkJob("w", 10, func() { called++ })
	j.DoWork(4)
	j.DoWork(100)
	j.DoWork(100)
	if called != 1 {
		t.Errorf("onDone called %d times, want 1", called)
	}
}
