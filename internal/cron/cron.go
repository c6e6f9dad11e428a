// Package cron runs periodic producers that feed work to the host loop,
// such as entity autosave and snapshot compaction.
package cron

import "context"

// Job is a producer fired on a cron schedule. A job only enqueues work; the
// work itself runs later on the host loop under the scheduler's budgets.
type Job interface {
	// Name is unique within a Runner.
	Name() string

	// Schedule is a robfig/cron expression: five fields, an optional
	// leading seconds field, or a descriptor such as "@every 30s".
	Schedule() string

	// Run enqueues the work. ctx is cancelled when the runner stops.
	Run(ctx context.Context) error
}
