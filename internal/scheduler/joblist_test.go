package scheduler

import "testing"

func TestJobList_PruneRebasesCursor(t *testing.T) {
	t.Parallel()

	jobs := make([]*recordingJob, 5)
	l := &jobList{}
	for i := range jobs {
		jobs[i] = &recordingJob{name: string(rune('a' + i))}
		l.add(jobs[i])
	}
	l.cursor = 3 // pointing at "d"

	jobs[0].done = true
	jobs[2].done = true
	jobs[3].done = true // the cursor target itself

	if removed := l.prune(); removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	if l.len() != 2 {
		t.Fatalf("len = %d, want 2", l.len())
	}
	// "d" is gone, its successor "e" now sits at index 1.
	if got := l.jobs[l.cursor].(*recordingJob).name; got != "e" {
		t.Errorf("cursor points at %q, want %q", got, "e")
	}
}

func TestJobList_PruneWrapsCursorPastEnd(t *testing.T) {
	t.Parallel()

	a, b := &recordingJob{name: "a"}, &recordingJob{name: "b"}
	l := &jobList{}
	l.add(a)
	l.add(b)
	l.cursor = 1
	b.done = true

	l.prune()
	if l.cursor != 0 {
		t.Errorf("cursor = %d, want 0", l.cursor)
	}
}

func TestJobList_PruneAllResetsCursor(t *testing.T) {
	t.Parallel()

	a := &recordingJob{done: true}
	l := &jobList{}
	l.add(a)
	l.cursor = 0

	l.prune()
	if l.len() != 0 || l.cursor != 0 {
		t.Errorf("len = %d cursor = %d, want 0/0", l.len(), l.cursor)
	}
	if l.run(3, 100) != 0 {
		t.Error("run on an empty list must visit nothing")
	}
}

func TestJobList_AddIsIdempotent(t *testing.T) {
	t.Parallel()

	j := &recordingJob{}
	l := &jobList{}
	if !l.add(j) {
		t.Fatal("first add should succeed")
	}
	if l.add(j) {
		t.Fatal("second add must be ignored")
	}
}

func FuzzJobListRotation(f *testing.F) {
	f.Add(uint8(7), uint8(3), uint8(5))
	f.Add(uint8(1), uint8(5), uint8(2))
	f.Add(uint8(10), uint8(10), uint8(1))
	f.Add(uint8(4), uint8(0), uint8(3))

	f.Fuzz(func(t *testing.T, count, limit, rounds uint8) {
		if count == 0 {
			return
		}
		jobs := make([]*recordingJob, count)
		l := &jobList{}
		for i := range jobs {
			jobs[i] = &recordingJob{}
			l.add(jobs[i])
		}

		n := min(int(count), int(limit))
		for range rounds {
			if n <= 0 {
				break
			}
			l.run(n, 1)
			if l.cursor < 0 || l.cursor >= l.len() {
				t.Fatalf("cursor %d out of range [0,%d)", l.cursor, l.len())
			}
		}

		// Visits are spread evenly: no job is more than one call ahead.
		lo, hi := jobs[0].calls, jobs[0].calls
		for _, j := range jobs {
			lo = min(lo, j.calls)
			hi = max(hi, j.calls)
		}
		if hi-lo > 1 {
			t.Fatalf("uneven rotation: min %d max %d", lo, hi)
		}
	})
}
