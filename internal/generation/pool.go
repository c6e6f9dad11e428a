package generation

// Slot is a pooled storage cell. Its generation is bumped each time it is
// released, so references captured before the release become stale.
type Slot[T any] struct {
	index int
	gen   uint64
	inUse bool
	value T
}

// Generation implements Stamped.
func (s *Slot[T]) Generation() uint64 { return s.gen }

// Index returns the slot position inside its pool. Indices are reused.
func (s *Slot[T]) Index() int { return s.index }

// InUse reports whether the slot currently holds a live instance.
func (s *Slot[T]) InUse() bool { return s.inUse }

// Value returns a pointer to the payload. It is only meaningful while the
// slot is in use.
func (s *Slot[T]) Value() *T { return &s.value }

// Pool hands out slots and recycles released ones. It is not safe for
// concurrent use; like the scheduler it belongs to a single host goroutine.
type Pool[T any] struct {
	slots []*Slot[T]
	free  []int
	live  int
}

// NewPool creates an empty pool.
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{}
}

// Acquire returns a slot holding v, reusing the most recently released slot
// when one is available.
func (p *Pool[T]) Acquire(v T) *Slot[T] {
	var s *Slot[T]
	if n := len(p.free); n > 0 {
		s = p.slots[p.free[n-1]]
		p.free = p.free[:n-1]
	} else {
		s = &Slot[T]{index: len(p.slots)}
		p.slots = append(p.slots, s)
	}
	s.inUse = true
	s.value = v
	p.live++
	return s
}

// Release returns s to the pool and bumps its generation. Releasing a slot
// that is not in use, or that belongs to another pool, is a no-op and
// reports false.
func (p *Pool[T]) Release(s *Slot[T]) bool {
	if s == nil || !s.inUse || s.index >= len(p.slots) || p.slots[s.index] != s {
		return false
	}
	var zero T
	s.value = zero
	s.inUse = false
	s.gen++
	p.free = append(p.free, s.index)
	p.live--
	return true
}

// Get returns the in-use slot at index.
func (p *Pool[T]) Get(index int) (*Slot[T], bool) {
	if index < 0 || index >= len(p.slots) {
		return nil, false
	}
	s := p.slots[index]
	if !s.inUse {
		return nil, false
	}
	return s, true
}

// Len returns the number of slots in use.
func (p *Pool[T]) Len() int { return p.live }

// Range calls fn for every in-use slot in index order until fn returns false.
func (p *Pool[T]) Range(fn func(s *Slot[T]) bool) {
	for _, s := range p.slots {
		if !s.inUse {
			continue
		}
		if !fn(s) {
			return
		}
	}
}
