package scheduler

// UnitJob is a job that needs a fixed number of work units. OnComplete, if
// set, runs inside the DoWork call that exhausts the requirement.
type UnitJob struct {
	Name       string
	Need       int
	OnComplete func(j *UnitJob)
	// OnProgress, if set, receives the units credited by each DoWork call,
	// capped at what the job still needed.
	OnProgress func(j *UnitJob, units int)

	done int
}

// Compile-time interface check.
var _ Job = (*UnitJob)(nil)

// NewUnitJob creates a job that completes after need units of work.
func NewUnitJob(name string, need int) *UnitJob {
	return &UnitJob{Name: name, Need: need}
}

// Done implements Job.
func (j *UnitJob) Done() bool { return j.done >= j.Need }

// DoWork implements Job.
func (j *UnitJob) DoWork(units int) {
	if j.Done() || units <= 0 {
		return
	}
	credited := min(units, j.Need-j.done)
	j.done += credited
	if j.OnProgress != nil {
		j.OnProgress(j, credited)
	}
	if j.Done() && j.OnComplete != nil {
		j.OnComplete(j)
	}
}

// Remaining returns the units still needed.
func (j *UnitJob) Remaining() int { return max(j.Need-j.done, 0) }

// FuncJob adapts a step function to Job. Step receives the unit budget and
// reports whether the job is finished.
type FuncJob struct {
	step func(units int) bool
	done bool
}

// Compile-time interface check.
var _ Job = (*FuncJob)(nil)

// NewFuncJob wraps step as a Job.
func NewFuncJob(step func(units int) (done bool)) *FuncJob {
	return &FuncJob{step: step}
}

// Done implements Job.
func (j *FuncJob) Done() bool { return j.done }

// DoWork implements Job.
func (j *FuncJob) DoWork(units int) {
	if j.done {
		return
	}
	j.done = j.step(units)
}
