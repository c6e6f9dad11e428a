package scheduler

// jobList is the insertion-ordered set of active jobs plus the rotation
// cursor that persists across ticks.
type jobList struct {
	jobs   []Job
	cursor int
}

// add appends j unless the same reference is already present.
func (l *jobList) add(j Job) bool {
	for _, existing := range l.jobs {
		if existing == j {
			return false
		}
	}
	l.jobs = append(l.jobs, j)
	return true
}

// prune removes completed jobs and rebases the cursor so it keeps pointing at
// the same logical successor. It returns the number of removed jobs.
func (l *jobList) prune() int {
	kept := l.jobs[:0]
	cursor := l.cursor
	removed := 0
	for i, j := range l.jobs {
		if j.Done() {
			removed++
			if i < l.cursor {
				cursor--
			}
			continue
		}
		kept = append(kept, j)
	}
	clear(l.jobs[len(kept):])
	l.jobs = kept
	switch {
	case len(l.jobs) == 0 || cursor < 0:
		l.cursor = 0
	default:
		l.cursor = cursor % len(l.jobs)
	}
	return removed
}

// run hands units to n jobs starting at the cursor, wrapping around the end
// of the list. The length is re-read at every step because a job may register
// further jobs from inside DoWork.
func (l *jobList) run(n, units int) int {
	visited := 0
	for range n {
		size := len(l.jobs)
		if size == 0 {
			break
		}
		idx := l.cursor % size
		l.cursor = (idx + 1) % size
		l.jobs[idx].DoWork(units)
		visited++
	}
	return visited
}

func (l *jobList) len() int { return len(l.jobs) }
