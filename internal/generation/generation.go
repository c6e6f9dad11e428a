// Package generation provides generation-stamped handles and the comparison
// key used to detect that a pooled handle was released (and possibly reused)
// after a reference to it was captured.
package generation

import "reflect"

// Stamped is implemented by any handle whose underlying storage can be
// recycled. Generation must change every time the handle stops referring to
// the logical instance it referred to before.
type Stamped interface {
	Generation() uint64
}

// Ref is a non-owning reference: the handle plus the generation observed at
// capture time. Holding a Ref never keeps the handle's instance alive.
type Ref struct {
	target Stamped
	stamp  uint64
}

// Capture records h together with its current generation. It reports false
// for a nil handle, including a typed nil pointer stored in the interface.
func Capture(h Stamped) (Ref, bool) {
	if isNil(h) {
		return Ref{}, false
	}
	return Ref{target: h, stamp: h.Generation()}, true
}

// Live reports whether the referenced handle still carries the generation
// captured by Capture.
func (r Ref) Live() bool {
	if r.target == nil {
		return false
	}
	return r.target.Generation() == r.stamp
}

// Stamp returns the generation captured at registration time.
func (r Ref) Stamp() uint64 { return r.stamp }

// Target returns the referenced handle.
func (r Ref) Target() Stamped { return r.target }

func isNil(h Stamped) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
