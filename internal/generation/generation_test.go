package generation

import "testing"

type fixedHandle struct{ gen uint64 }

func (h *fixedHandle) Generation() uint64 { return h.gen }

func TestCapture_NilHandle(t *testing.T) {
	t.Parallel()

	if _, ok := Capture(nil); ok {
		t.Fatal("expected nil interface to be rejected")
	}

	var typed *fixedHandle
	if _, ok := Capture(typed); ok {
		t.Fatal("expected typed nil pointer to be rejected")
	}
}

func TestRef_LiveUntilGenerationChanges(t *testing.T) {
	t.Parallel()

	h := &fixedHandle{gen: 7}
	ref, ok := Capture(h)
	if !ok {
		t.Fatal("capture failed")
	}
	if ref.Stamp() != 7 {
		t.Errorf("stamp = %d, want 7", ref.Stamp())
	}
	if !ref.Live() {
		t.Fatal("expected ref to be live")
	}

	h.gen++
	if ref.Live() {
		t.Fatal("expected ref to be stale after generation change")
	}
}

func TestRef_ZeroValueNotLive(t *testing.T) {
	t.Parallel()

	var ref Ref
	if ref.Live() {
		t.Fatal("zero Ref must not be live")
	}
}

func TestPool_ReleaseBumpsGeneration(t *testing.T) {
	t.Parallel()

	p := NewPool[string]()
	s := p.Acquire("a")
	ref, _ := Capture(s)

	if !p.Release(s) {
		t.Fatal("release failed")
	}
	if ref.Live() {
		t.Fatal("ref must be stale once the slot is released")
	}
	if p.Release(s) {
		t.Fatal("double release must report false")
	}
}

func TestPool_ReuseKeepsOldRefsStale(t *testing.T) {
	t.Parallel()

	p := NewPool[string]()
	first := p.Acquire("first")
	ref, _ := Capture(first)
	p.Release(first)

	second := p.Acquire("second")
	if second != first {
		t.Fatal("expected released slot to be reused")
	}
	if *second.Value() != "second" {
		t.Errorf("value = %q, want %q", *second.Value(), "second")
	}
	if ref.Live() {
		t.Fatal("ref captured before reuse must stay stale")
	}
}

func TestPool_GetAndRange(t *testing.T) {
	t.Parallel()

	p := NewPool[int]()
	a := p.Acquire(1)
	b := p.Acquire(2)
	c := p.Acquire(3)
	p.Release(b)

	if p.Len() != 2 {
		t.Errorf("len = %d, want 2", p.Len())
	}
	if _, ok := p.Get(b.Index()); ok {
		t.Error("released slot must not be returned by Get")
	}
	if got, ok := p.Get(c.Index()); !ok || got != c {
		t.Error("expected Get to return the live slot")
	}
	if _, ok := p.Get(-1); ok {
		t.Error("negative index must not resolve")
	}

	var seen []int
	p.Range(func(s *Slot[int]) bool {
		seen = append(seen, *s.Value())
		return true
	})
	if len(seen) != 2 || seen[0] != *a.Value() || seen[1] != 3 {
		t.Errorf("range = %v, want [1 3]", seen)
	}
}

func TestPool_ReleaseForeignSlot(t *testing.T) {
	t.Parallel()

	p1 := NewPool[int]()
	p2 := NewPool[int]()
	s := p1.Acquire(1)
	p2.Acquire(2)

	if p2.Release(s) {
		t.Fatal("releasing a slot from another pool must fail")
	}
	if !s.InUse() {
		t.Fatal("foreign release must not change the slot")
	}
}
