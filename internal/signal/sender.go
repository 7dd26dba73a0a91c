package signal

import (
	"fmt"
	"runtime"
	"weak"
)

// Observed is a sender identity that the registry watches without keeping
// the sender alive. When the sender is collected, every subscription made
// for it is removed.
//
// Two Observed values are equal exactly when they were made from the same
// pointer, so distinct objects that happen to compare equal are distinct
// senders.
type Observed[T any] struct {
	p weak.Pointer[T]
}

// Observe returns the weakly observed sender identity of p.
func Observe[T any](p *T) Observed[T] {
	return Observed[T]{p: weak.Make(p)}
}

// Value returns the sender, or nil once it has been collected.
func (o Observed[T]) Value() *T {
	return o.p.Value()
}

// String describes the sender type.
func (o Observed[T]) String() string {
	return fmt.Sprintf("observed %T", (*T)(nil))
}

func (o Observed[T]) alive() bool {
	return o.p.Value() != nil
}

func (o Observed[T]) observe(fn func()) (stop func(), ok bool) {
	p := o.p.Value()
	if p == nil {
		return nil, false
	}
	c := runtime.AddCleanup(p, runCleanup, fn)
	return c.Stop, true
}

func runCleanup(fn func()) {
	fn()
}

// observable is implemented by every Observed instantiation.
type observable interface {
	alive() bool
	observe(fn func()) (stop func(), ok bool)
}
