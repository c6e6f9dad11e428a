// Package scheduler splits long-running work into bounded increments that a
// single-threaded host loop runs across many ticks, and rate-limits expensive
// disk callbacks to at most one per cooldown window.
package scheduler

import "time"

// Job is a unit of deferred work. A job owns its own progress; the scheduler
// only asks whether it is done and hands it a share of the per-tick budget.
//
// Jobs are compared by reference, so implementations should be pointers.
type Job interface {
	// Done reports whether the job has no work left.
	Done() bool

	// DoWork performs at most units of work and returns promptly.
	DoWork(units int)
}

// TickFunc is the callback shape delivered by a host tick source.
type TickFunc func(delta time.Duration, dilation float64)

// TickSource is a host-provided periodic callback source the scheduler may
// attach itself to while it has pending work.
type TickSource interface {
	// Available reports whether the source can currently deliver ticks.
	Available() bool

	// Subscribe registers fn and returns a function that removes it.
	Subscribe(fn TickFunc) (unsubscribe func())
}
