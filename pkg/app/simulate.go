package app

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/tickwork/internal/generation"
	"github.com/flemzord/tickwork/internal/scheduler"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ErrSimulationStalled is returned when work remains after MaxTicks.
var ErrSimulationStalled = errors.New("simulation did not drain")

// DefaultSimulationJobs is the canonical budgeting scenario.
var DefaultSimulationJobs = []int{2400, 3000, 7600, 1000}

// JobSimulation drives a detached scheduler with manual ticks until every
// job completes.
type JobSimulation struct {
	Jobs             []int
	WorkUnitsPerTick int
	MaxJobsPerTick   int
	Delta            time.Duration
	MaxTicks         int

	// Progress, when set, receives one mpb bar per job.
	Progress io.Writer
}

// JobReport lists, per tick, the jobs that completed during that tick.
type JobReport struct {
	Ticks       int
	Completions [][]string
}

// Order flattens the completions into a single completion order.
func (r JobReport) Order() []string {
	var out []string
	for _, names := range r.Completions {
		out = append(out, names...)
	}
	return out
}

// ParseJobs parses a comma separated list of positive unit counts.
func ParseJobs(s string) ([]int, error) {
	var jobs []int
	for field := range strings.SplitSeq(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid job size %q: want a positive integer", field)
		}
		jobs = append(jobs, n)
	}
	if len(jobs) == 0 {
		return nil, errors.New("no jobs given")
	}
	return jobs, nil
}

// Run executes the simulation, writing one line per tick to out.
func (s JobSimulation) Run(out io.Writer) (JobReport, error) {
	if s.MaxTicks <= 0 {
		s.MaxTicks = 10000
	}
	if s.Delta <= 0 {
		s.Delta = 50 * time.Millisecond
	}

	sched := scheduler.New(scheduler.Config{
		WorkUnitsPerTick: s.WorkUnitsPerTick,
		MaxJobsPerTick:   s.MaxJobsPerTick,
	})

	var progress *mpb.Progress
	if s.Progress != nil {
		progress = mpb.New(mpb.WithOutput(s.Progress), mpb.WithWidth(48))
	}

	var report JobReport
	var completed []string
	for i, need := range s.Jobs {
		job := scheduler.NewUnitJob(fmt.Sprintf("job%d", i+1), need)
		job.OnComplete = func(j *scheduler.UnitJob) { completed = append(completed, j.Name) }
		if progress != nil {
			bar := addJobBar(progress, job.Name, need)
			job.OnProgress = func(_ *scheduler.UnitJob, units int) { bar.IncrBy(units) }
		}
		sched.AddJob(job)
	}

	fmt.Fprintf(out, "%d jobs, %d units per tick, at most %d jobs per tick\n",
		len(s.Jobs), s.WorkUnitsPerTick, s.MaxJobsPerTick)

	for sched.JobsAmount() > 0 && report.Ticks < s.MaxTicks {
		active := sched.JobsAmount()
		completed = nil
		sched.ManualTick(s.Delta)
		report.Ticks++
		report.Completions = append(report.Completions, completed)

		done := "-"
		if len(completed) > 0 {
			done = strings.Join(completed, ", ")
		}
		fmt.Fprintf(out, "tick %d: %d active, completed: %s\n", report.Ticks, active, done)
	}

	if progress != nil {
		progress.Wait()
	}
	if n := sched.JobsAmount(); n > 0 {
		return report, fmt.Errorf("%w: %d jobs left after %d ticks", ErrSimulationStalled, n, report.Ticks)
	}
	fmt.Fprintf(out, "drained in %d ticks, order: %s\n", report.Ticks, strings.Join(report.Order(), ", "))
	return report, nil
}

func addJobBar(p *mpb.Progress, name string, total int) *mpb.Bar {
	return p.New(int64(total),
		mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.OnComplete(decor.CountersNoUnit("%d / %d", decor.WC{W: 12}), "Complete"),
		),
		mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
	)
}

// DiskSimulation queues Requests disk requests for one pooled handle and
// feeds the given tick deltas, cycling through Deltas until the queue is
// empty or MaxTicks is reached.
type DiskSimulation struct {
	Requests int
	Cooldown time.Duration
	Deltas   []time.Duration
	MaxTicks int

	// ReleaseAfter, when positive, releases the handle after that many
	// ticks; the requests still queued are then dropped unfired.
	ReleaseAfter int
}

// DiskReport records callbacks fired and queue size after each tick.
type DiskReport struct {
	Fired []int
	Queue []int
}

// Total returns the number of callbacks fired.
func (r DiskReport) Total() int {
	n := 0
	for _, f := range r.Fired {
		n += f
	}
	return n
}

// Run executes the simulation, writing one line per tick to out.
func (s DiskSimulation) Run(out io.Writer) (DiskReport, error) {
	if len(s.Deltas) == 0 {
		return DiskReport{}, errors.New("no tick deltas given")
	}
	if s.MaxTicks <= 0 {
		s.MaxTicks = 10000
	}

	pool := generation.NewPool[string]()
	handle := pool.Acquire("handle")
	sched := scheduler.New(scheduler.Config{DiskCooldown: s.Cooldown})

	fired := 0
	for range s.Requests {
		req := sched.RequestDiskAccess(handle)
		req.Callback = func() { fired++ }
	}
	fmt.Fprintf(out, "%d requests, cooldown %s\n", s.Requests, s.Cooldown)

	var report DiskReport
	for tick := 0; sched.DiskQueueSize() > 0 && tick < s.MaxTicks; tick++ {
		if s.ReleaseAfter > 0 && tick == s.ReleaseAfter {
			pool.Release(handle)
			fmt.Fprintln(out, "handle released")
		}
		delta := s.Deltas[tick%len(s.Deltas)]
		before := fired
		sched.ManualTick(delta)

		queued := sched.DiskQueueSize()
		report.Fired = append(report.Fired, fired-before)
		report.Queue = append(report.Queue, queued)
		fmt.Fprintf(out, "tick %d (+%s): fired %d, total %d, queued %d\n",
			tick+1, delta, fired-before, fired, queued)
	}

	if n := sched.DiskQueueSize(); n > 0 {
		return report, fmt.Errorf("%w: %d requests left after %d ticks", ErrSimulationStalled, n, len(report.Fired))
	}
	return report, nil
}
