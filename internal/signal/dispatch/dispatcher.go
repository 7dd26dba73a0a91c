package dispatch

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Mode selects how a delivery reacts to a failing call.
type Mode int

const (
	// StopOnFailure ends the delivery at the first failing call.
	StopOnFailure Mode = iota

	// Continue attempts every call.
	Continue
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case StopOnFailure:
		return "stop-on-failure"
	case Continue:
		return "continue"
	default:
		return "unknown"
	}
}

// PanicFunc is told about every recovered panic with the delivery's
// dispatch ID and the name of the call.
type PanicFunc func(id, name string, p *Panic)

// Dispatcher runs deliveries of events of type E. It is safe for
// concurrent use.
type Dispatcher[E any] struct {
	mode    Mode
	onPanic PanicFunc

	deliveries atomic.Uint64
	stopped    atomic.Uint64
	calls      atomic.Uint64
	succeeded  atomic.Uint64
	failed     atomic.Uint64
	panicked   atomic.Uint64
	skipped    atomic.Uint64
	totalNs    atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*options)

type options struct {
	mode    Mode
	onPanic PanicFunc
}

// WithMode sets the failure mode. The default is StopOnFailure.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithPanicFunc sets the callback for recovered panics.
func WithPanicFunc(fn PanicFunc) Option {
	return func(o *options) {
		o.onPanic = fn
	}
}

// New creates a dispatcher.
func New[E any](opts ...Option) *Dispatcher[E] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher[E]{mode: o.mode, onPanic: o.onPanic}
}

// Mode returns the dispatcher's failure mode.
func (d *Dispatcher[E]) Mode() Mode {
	return d.mode
}

// Run delivers ev to calls in order under dispatch ID id.
func (d *Dispatcher[E]) Run(ctx context.Context, id string, ev E, calls []Call[E]) Report {
	d.deliveries.Add(1)

	report := Report{ID: id, Outcomes: make([]Outcome, 0, len(calls))}
	for i, c := range calls {
		o := d.invoke(ctx, id, ev, c)
		o.Index = i
		report.Outcomes = append(report.Outcomes, o)

		if o.Failed() && d.mode == StopOnFailure {
			report.Stopped = true
			d.stopped.Add(1)
			break
		}
	}
	return report
}

// invoke runs a single call with panic recovery and timing.
func (d *Dispatcher[E]) invoke(ctx context.Context, id string, ev E, c Call[E]) (o Outcome) {
	d.calls.Add(1)
	o.Name = c.Name

	if err := ctx.Err(); err != nil {
		d.skipped.Add(1)
		o.Err = err
		o.Skipped = true
		return o
	}

	start := time.Now()
	defer func() {
		o.Duration = time.Since(start)
		d.totalNs.Add(o.Duration.Nanoseconds())

		if v := recover(); v != nil {
			d.panicked.Add(1)
			o.Value = nil
			o.Err = nil
			o.Panic = &Panic{Value: v, Stack: debug.Stack()}
			d.reportPanic(id, c.Name, o.Panic)
			return
		}
		if o.Err != nil {
			d.failed.Add(1)
		} else {
			d.succeeded.Add(1)
		}
	}()

	o.Value, o.Err = c.Fn(ctx, ev)
	return o
}

// reportPanic calls the PanicFunc; a panic inside it is dropped.
func (d *Dispatcher[E]) reportPanic(id, name string, p *Panic) {
	if d.onPanic == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	d.onPanic(id, name, p)
}

// Stats returns running totals. Counters are read one by one, so they may
// be slightly inconsistent while deliveries are in flight.
func (d *Dispatcher[E]) Stats() Stats {
	calls := d.calls.Load()
	totalNs := d.totalNs.Load()

	var avgNs int64
	if ran := calls - d.skipped.Load(); ran > 0 {
		avgNs = totalNs / int64(ran)
	}

	return Stats{
		Deliveries:    d.deliveries.Load(),
		Stopped:       d.stopped.Load(),
		Calls:         calls,
		Succeeded:     d.succeeded.Load(),
		Failed:        d.failed.Load(),
		Panicked:      d.panicked.Load(),
		Skipped:       d.skipped.Load(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// Stats contains the totals of a Dispatcher.
type Stats struct {
	// Deliveries is the number of Run calls.
	Deliveries uint64

	// Stopped is the number of deliveries ended early by a failure.
	Stopped uint64

	// Calls is the number of handler calls attempted.
	Calls uint64

	// Succeeded is the number of calls that returned without error.
	Succeeded uint64

	// Failed is the number of calls that returned an error.
	Failed uint64

	// Panicked is the number of calls that panicked.
	Panicked uint64

	// Skipped is the number of calls skipped because the context was done.
	Skipped uint64

	// TotalDuration is the cumulative time spent in handlers.
	TotalDuration time.Duration

	// AvgDuration is the average time of the calls that ran.
	AvgDuration time.Duration
}
