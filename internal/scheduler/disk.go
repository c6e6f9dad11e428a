package scheduler

import (
	"github.com/flemzord/tickwork/internal/generation"
	"github.com/google/uuid"
)

// DiskRequest is the registration returned by RequestDiskAccess. The caller
// assigns Callback before the next drain and must not keep the registration
// afterwards. A request whose Callback is still nil at drain time is consumed
// without effect.
type DiskRequest struct {
	// Callback runs at most once, on the host goroutine, when the request
	// reaches the head of the queue and its owner is still live.
	Callback func()

	id uuid.UUID
}

// ID identifies the request in logs.
func (r *DiskRequest) ID() uuid.UUID { return r.id }

// diskEntry pairs a registration with the non-owning reference to its owner.
type diskEntry struct {
	req   *DiskRequest
	owner generation.Ref
}

// diskQueue is the FIFO of pending disk requests.
type diskQueue struct {
	entries []diskEntry
}

func (q *diskQueue) push(e diskEntry) {
	q.entries = append(q.entries, e)
}

func (q *diskQueue) pop() (diskEntry, bool) {
	if len(q.entries) == 0 {
		return diskEntry{}, false
	}
	e := q.entries[0]
	q.entries[0] = diskEntry{}
	q.entries = q.entries[1:]
	return e, true
}

// pruneStale drops entries whose owner changed generation, without firing
// any callback, and returns them.
func (q *diskQueue) pruneStale() []diskEntry {
	var dropped []diskEntry
	kept := q.entries[:0]
	for _, e := range q.entries {
		if !e.owner.Live() {
			dropped = append(dropped, e)
			continue
		}
		kept = append(kept, e)
	}
	clear(q.entries[len(kept):])
	q.entries = kept
	return dropped
}

func (q *diskQueue) len() int { return len(q.entries) }
