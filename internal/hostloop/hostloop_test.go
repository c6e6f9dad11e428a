package hostloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/tickwork/internal/generation"
	"github.com/flemzord/tickwork/internal/scheduler"
)

func testLoop(t *testing.T) *Loop {
	t.Helper()
	return New(Config{
		Interval: 2 * time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func startLoop(t *testing.T, l *Loop) {
	t.Helper()
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Stop(context.Background()) })
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoop_StartStop(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	if l.Available() {
		t.Fatal("loop must not be available before Start")
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !l.Available() {
		t.Fatal("loop must be available after Start")
	}
	if err := l.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if l.Available() {
		t.Fatal("loop must not be available after Stop")
	}
}

func TestLoop_AlreadyStarted(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	startLoop(t, l)
	if err := l.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestLoop_StopNotStarted(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	if err := l.Stop(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop before Start = %v, want ErrNotStarted", err)
	}
}

func TestLoop_Restart(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	startLoop(t, l)
	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Errorf("Do after restart: %v", err)
	}
}

func TestLoop_StopDiscardsQueuedClosures(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	if err := l.Post(func() {
		close(entered)
		<-release
	}); err != nil {
		t.Fatalf("Post blocker: %v", err)
	}
	<-entered

	var ran atomic.Bool
	if err := l.Post(func() { ran.Store(true) }); err != nil {
		t.Fatalf("Post queued: %v", err)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- l.Stop(context.Background()) }()
	waitFor(t, "stop to cancel the loop", func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.cancel == nil
	})
	close(release)
	if err := <-stopped; err != nil {
		t.Fatalf("Stop: %v", err)
	}

	startLoop(t, l)
	// A round trip through the new loop proves it is serving posts.
	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("Do after restart: %v", err)
	}
	if ran.Load() {
		t.Error("closure queued before Stop ran after the restart")
	}
}

func TestLoop_DoReportsStoppedForDiscardedClosure(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	_ = l.Post(func() {
		close(entered)
		<-release
	})
	<-entered

	result := make(chan error, 1)
	var ran atomic.Bool
	go func() { result <- l.Do(context.Background(), func() { ran.Store(true) }) }()
	waitFor(t, "the closure to be queued", func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.posts) == 1
	})

	stopped := make(chan error, 1)
	go func() { stopped <- l.Stop(context.Background()) }()
	waitFor(t, "stop to cancel the loop", func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.cancel == nil
	})
	close(release)

	if err := <-result; !errors.Is(err, ErrStopped) {
		t.Errorf("Do = %v, want ErrStopped", err)
	}
	if err := <-stopped; err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if ran.Load() {
		t.Error("discarded closure ran")
	}
}

func TestLoop_DeliversTicks(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	l.SetDilation(2)

	var (
		mu        sync.Mutex
		calls     int
		dilations []float64
	)
	unsubscribe := l.Subscribe(func(delta time.Duration, dilation float64) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		dilations = append(dilations, dilation)
		if delta <= 0 {
			t.Errorf("delta = %v, want positive", delta)
		}
	})
	defer unsubscribe()

	startLoop(t, l)
	waitFor(t, "three ticks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	})

	mu.Lock()
	defer mu.Unlock()
	for _, d := range dilations {
		if d != 2 {
			t.Errorf("dilation = %v, want 2", d)
		}
	}
}

func TestLoop_UnsubscribeInsideTick(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	var (
		first, second atomic.Int32
		unsubSecond   func()
	)
	// The first subscriber removes the second one during the same tick.
	var unsubFirst func()
	unsubFirst = l.Subscribe(func(time.Duration, float64) {
		first.Add(1)
		unsubSecond()
		unsubFirst()
	})
	unsubSecond = l.Subscribe(func(time.Duration, float64) {
		second.Add(1)
	})

	startLoop(t, l)
	waitFor(t, "first subscriber", func() bool { return first.Load() == 1 })
	waitFor(t, "later ticks", func() bool { return l.Stats().Ticks >= 3 })

	if got := first.Load(); got != 1 {
		t.Errorf("first called %d times, want 1", got)
	}
	if got := second.Load(); got != 0 {
		t.Errorf("second called %d times, want 0", got)
	}
	if got := l.Stats().Subscribers; got != 0 {
		t.Errorf("subscribers = %d, want 0", got)
	}
}

func TestLoop_UnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	a := l.Subscribe(func(time.Duration, float64) {})
	l.Subscribe(func(time.Duration, float64) {})
	a()
	a()
	if got := l.Stats().Subscribers; got != 1 {
		t.Errorf("subscribers = %d, want 1", got)
	}
}

func TestLoop_PostNotRunning(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	if err := l.Post(func() {}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Post = %v, want ErrNotRunning", err)
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Do = %v, want ErrNotRunning", err)
	}
}

func TestLoop_DoRunsOnLoop(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	startLoop(t, l)

	// Closures and ticks share one goroutine, so a counter mutated by both
	// needs no lock.
	counter := 0
	l.Subscribe(func(time.Duration, float64) { counter++ })
	for range 20 {
		if err := l.Do(context.Background(), func() { counter++ }); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	var got int
	if err := l.Do(context.Background(), func() { got = counter }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got < 20 {
		t.Errorf("counter = %d, want at least 20", got)
	}
}

func TestLoop_DoHonoursContext(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	startLoop(t, l)

	release := make(chan struct{})
	if err := l.Post(func() { <-release }); err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Do(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do = %v, want DeadlineExceeded", err)
	}
}

func TestLoop_DrivesScheduler(t *testing.T) {
	t.Parallel()

	l := testLoop(t)
	startLoop(t, l)

	cfg := scheduler.DefaultConfig()
	cfg.TickSource = l
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.DiskCooldown = 0

	pool := generation.NewPool[string]()
	owner := pool.Acquire("owner")

	var (
		s      *scheduler.Scheduler
		fired  atomic.Bool
		job    = scheduler.NewUnitJob("work", 3*scheduler.DefaultWorkUnitsPerTick)
		doneCh = make(chan struct{})
	)
	job.OnComplete = func(*scheduler.UnitJob) { close(doneCh) }

	err := l.Do(context.Background(), func() {
		s = scheduler.New(cfg)
		s.AddJob(job)
		s.RequestDiskAccess(owner).Callback = func() { fired.Store(true) }
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not complete")
	}
	if !fired.Load() {
		t.Error("disk callback did not fire")
	}

	// Completion is observed on the following tick, after which the
	// scheduler detaches.
	waitFor(t, "scheduler to detach", func() bool {
		var automated bool
		_ = l.Do(context.Background(), func() { automated = s.IsAutomated() })
		return !automated
	})
}
