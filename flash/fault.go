package flash

import "errors"

// ErrInjected is the cause carried by failures produced by a Faulter.
var ErrInjected = errors.New("injected fault")

type fault struct {
	skip  int
	count int
}

// Faulter makes selected calls of an operation fail. It is embedded by the
// in-memory devices so tests can exercise every failure path.
//
// The zero value injects nothing.
type Faulter struct {
	faults map[Op]*fault
	calls  map[Op]int
}

// FailAfter lets skip calls of op succeed and then fails the next count calls.
// A negative count fails every call after skip.
func (f *Faulter) FailAfter(op Op, skip, count int) {
	if f.faults == nil {
		f.faults = make(map[Op]*fault)
	}
	f.faults[op] = &fault{skip: skip, count: count}
}

// FailNext fails the next count calls of op.
func (f *Faulter) FailNext(op Op, count int) {
	f.FailAfter(op, 0, count)
}

// ClearFaults removes all injected faults.
func (f *Faulter) ClearFaults() {
	f.faults = nil
}

// Calls returns how many times op has been invoked.
func (f *Faulter) Calls(op Op) int {
	return f.calls[op]
}

// check records a call of op and reports whether it must fail.
func (f *Faulter) check(op Op) bool {
	if f.calls == nil {
		f.calls = make(map[Op]int)
	}
	f.calls[op]++

	flt, ok := f.faults[op]
	if !ok {
		return false
	}
	if flt.skip > 0 {
		flt.skip--
		return false
	}
	if flt.count == 0 {
		return false
	}
	if flt.count > 0 {
		flt.count--
	}
	return true
}
