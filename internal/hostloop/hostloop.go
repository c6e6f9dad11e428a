// Package hostloop provides the single host goroutine that delivers periodic
// ticks and runs closures posted from other goroutines. Everything that
// touches single-threaded state such as the scheduler goes through it.
package hostloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/tickwork/internal/scheduler"
)

// Sentinel errors for loop operations.
var (
	ErrAlreadyStarted = errors.New("hostloop: already started")
	ErrNotStarted     = errors.New("hostloop: not started")
	ErrNotRunning     = errors.New("hostloop: not running")
	ErrStopped        = errors.New("hostloop: stopped before the closure ran")
)

// Config holds loop configuration.
type Config struct {
	Interval  time.Duration // default 50ms
	Dilation  float64       // default 1
	QueueSize int           // posted closures buffered before Post blocks, default 256
	Logger    *slog.Logger
	Now       func() time.Time // injectable for testing
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 50 * time.Millisecond
	}
	if c.Dilation <= 0 {
		c.Dilation = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type subscription struct {
	id uint64
	fn scheduler.TickFunc
}

// Stats is a point-in-time view of the loop.
type Stats struct {
	Running     bool    `json:"running"`
	Ticks       uint64  `json:"ticks"`
	Subscribers int     `json:"subscribers"`
	Dilation    float64 `json:"dilation"`
}

// Loop is the host tick source. It implements scheduler.TickSource.
type Loop struct {
	cfg Config

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	posts    chan func() // replaced on every Start
	subs     []subscription
	nextID   uint64
	dilation uint64 // math.Float64bits

	running atomic.Bool
	ticks   atomic.Uint64
}

// Compile-time interface check.
var _ scheduler.TickSource = (*Loop)(nil)

// New creates a stopped loop.
func New(cfg Config) *Loop {
	cfg = cfg.withDefaults()
	l := &Loop{cfg: cfg}
	l.dilation = math.Float64bits(cfg.Dilation)
	return l
}

// Start launches the loop goroutine. Returns ErrAlreadyStarted if running.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	l.posts = make(chan func(), l.cfg.QueueSize)
	l.running.Store(true)
	go l.run(ctx, l.done, l.posts)
	l.cfg.Logger.Info("host loop started", "interval", l.cfg.Interval)
	return nil
}

// Stop cancels the loop and waits for the goroutine to exit or ctx to end.
// Closures still queued are discarded and never run, not even after a
// later Start.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.cancel == nil {
		l.mu.Unlock()
		return ErrNotStarted
	}
	l.cancel()
	l.cancel = nil
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
		l.cfg.Logger.Info("host loop stopped", "ticks", l.ticks.Load())
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hostloop: waiting for loop exit: %w", ctx.Err())
	}
}

// Available implements scheduler.TickSource.
func (l *Loop) Available() bool {
	return l.running.Load()
}

// Subscribe implements scheduler.TickSource. The returned function is
// idempotent and may be called from inside a tick callback.
func (l *Loop) Subscribe(fn scheduler.TickFunc) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscription{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.subs = slices.DeleteFunc(l.subs, func(s subscription) bool { return s.id == id })
			l.mu.Unlock()
		})
	}
}

// SetDilation changes the coefficient passed to subscribers. Non-positive
// values are ignored.
func (l *Loop) SetDilation(d float64) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	l.dilation = math.Float64bits(d)
	l.mu.Unlock()
}

// Post queues fn to run on the loop goroutine. It blocks while the queue is
// full.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	done, posts := l.done, l.posts
	l.mu.Unlock()
	if !l.running.Load() || done == nil {
		return ErrNotRunning
	}
	select {
	case posts <- fn:
		return nil
	case <-done:
		return ErrStopped
	}
}

// Do runs fn on the loop goroutine and waits for it to return. It must not
// be called from the loop goroutine itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Running:     l.running.Load(),
		Ticks:       l.ticks.Load(),
		Subscribers: len(l.subs),
		Dilation:    math.Float64frombits(l.dilation),
	}
}

// run is the loop goroutine. Ticks and posted closures are serialised here.
// Cancellation wins over pending work: once ctx is done no further closure
// or tick runs, and the closures left in posts are dropped.
func (l *Loop) run(ctx context.Context, done chan struct{}, posts chan func()) {
	defer close(done)
	defer discard(posts)
	defer l.running.Store(false)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	last := l.cfg.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-posts:
			if ctx.Err() != nil {
				return
			}
			fn()
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			now := l.cfg.Now()
			delta := now.Sub(last)
			last = now
			l.deliver(delta)
		}
	}
}

func discard(posts chan func()) {
	for {
		select {
		case <-posts:
		default:
			return
		}
	}
}

// deliver calls every subscriber registered when the tick started and still
// registered when its turn comes.
func (l *Loop) deliver(delta time.Duration) {
	l.mu.Lock()
	snapshot := slices.Clone(l.subs)
	dilation := math.Float64frombits(l.dilation)
	l.mu.Unlock()

	l.ticks.Add(1)
	for _, s := range snapshot {
		if !l.subscribed(s.id) {
			continue
		}
		s.fn(delta, dilation)
	}
}

func (l *Loop) subscribed(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.ContainsFunc(l.subs, func(s subscription) bool { return s.id == id })
}
