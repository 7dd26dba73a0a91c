// Package dispatch delivers one event to an ordered list of handler calls.
//
// A Dispatcher runs every delivery synchronously in the caller's goroutine
// and reports it as a Report: one Outcome per call that was attempted, in
// call order. The Mode decides what happens when a call fails:
//
//   - StopOnFailure ends the delivery at the first error or panic; the
//     Report is marked Stopped and its last Outcome is the failure.
//   - Continue attempts every call and records each failure in place.
//
// # Panic Recovery
//
// A panicking handler never takes the sender down. The panic is recorded
// in the Outcome together with its stack, and the optional PanicFunc is
// told about it.
//
// # Usage
//
//	d := dispatch.New[Event](
//	    dispatch.WithMode(dispatch.Continue),
//	    dispatch.WithPanicFunc(func(id, name string, p *dispatch.Panic) {
//	        logger.Warn("handler panicked", "dispatch_id", id, "handler", name)
//	    }),
//	)
//	report := d.Run(ctx, id, ev, calls)
//	for _, o := range report.Failures() {
//	    ...
//	}
package dispatch
