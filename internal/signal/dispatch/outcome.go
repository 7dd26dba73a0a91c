package dispatch

import (
	"context"
	"time"
)

// Call is one handler invocation of a delivery.
type Call[E any] struct {
	// Name identifies the handler in outcomes and panic reports.
	Name string

	// Fn is the handler itself.
	Fn func(ctx context.Context, ev E) (any, error)
}

// Panic describes a recovered handler panic.
type Panic struct {
	Value any
	Stack []byte
}

// Outcome records how one call ended.
type Outcome struct {
	// Index is the position of the call in the delivery.
	Index int

	// Name is the name of the call.
	Name string

	// Value is whatever the handler returned, also on error.
	Value any

	// Err is the handler's error, or the context error for skipped calls.
	Err error

	// Panic is set when the handler panicked.
	Panic *Panic

	// Skipped is true if the context was done before the call started.
	Skipped bool

	// Duration is the time spent in the handler.
	Duration time.Duration
}

// Failed reports whether the call returned an error, panicked or was
// skipped.
func (o Outcome) Failed() bool {
	return o.Err != nil || o.Panic != nil
}

// Report is the result of one delivery.
type Report struct {
	// ID is the delivery's dispatch ID.
	ID string

	// Outcomes holds one entry per attempted call, in call order.
	Outcomes []Outcome

	// Stopped is true if StopOnFailure ended the delivery early. The last
	// outcome is then the failure.
	Stopped bool
}

// Failures returns the failed outcomes.
func (r Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}
