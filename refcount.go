package hwdec

import "sync/atomic"

// refCount is an atomic reference count. The owner initializes it to one,
// takes additional references with ref, and drops them with unref; the
// destructor passed to unref runs exactly once, on the drop that reaches
// zero.
//
// Counts are mutated from arbitrary decode-completion and teardown
// goroutines, so all operations are atomic.
type refCount struct {
	n atomic.Int32
}

// init sets the initial self-reference.
func (r *refCount) init() {
	r.n.Store(1)
}

// ref takes an additional reference.
func (r *refCount) ref() {
	if r.n.Add(1) <= 1 {
		panic("hwdec: ref on released object")
	}
}

// unref drops one reference and runs free if it was the last. It returns
// the remaining count.
func (r *refCount) unref(free func()) int32 {
	n := r.n.Add(-1)
	switch {
	case n == 0:
		free()
	case n < 0:
		panic("hwdec: reference count underflow")
	}
	return n
}

// count returns the current reference count. For diagnostics and tests.
func (r *refCount) count() int32 {
	return r.n.Load()
}
