package signal

import (
	"fmt"
	"reflect"
	"strings"
)

// Signal identifies a class of events. Any comparable, non-nil value can be
// used; strings and typed constants are the usual choice. Any is a valid
// signal and matches every signal.
type Signal any

// wildcard is the type of the two distinguished sender/signal values.
type wildcard struct {
	name string
}

func (w *wildcard) String() string {
	return w.name
}

var (
	// Any matches every signal when used as a signal and every sender when
	// used as a sender. It is the default sender for Connect and Send.
	Any = &wildcard{name: "Any"}

	// Anonymous marks a sender that is intentionally untracked. It is only
	// valid in the sender position.
	Anonymous = &wildcard{name: "Anonymous"}
)

// Response is the outcome of delivering an event to one handler.
type Response struct {
	// Handler is the live handler that was invoked.
	Handler Handler

	// Value is what the handler returned.
	Value any

	// Err is set when the handler failed. It is only populated under
	// PolicyIsolate; under PolicyFailFast the failure is returned by Send.
	Err error
}

// Policy controls what Send does when a handler fails.
type Policy int

const (
	// PolicyFailFast stops delivery at the first failing handler and
	// returns the responses gathered so far along with the failure.
	PolicyFailFast Policy = iota

	// PolicyIsolate delivers to every handler, recording each failure in
	// its Response and joining all failures into the returned error.
	PolicyIsolate
)

// String returns the policy name used in configuration files.
func (p Policy) String() string {
	switch p {
	case PolicyFailFast:
		return "fail-fast"
	case PolicyIsolate:
		return "isolate"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail-fast", "failfast":
		return PolicyFailFast, nil
	case "isolate":
		return PolicyIsolate, nil
	default:
		return PolicyFailFast, fmt.Errorf("unknown dispatch policy %q", s)
	}
}

func checkSignal(sig Signal) error {
	if sig == nil {
		return fmt.Errorf("%w: signal is nil", ErrInvalidSignal)
	}
	if sig == Signal(Anonymous) {
		return fmt.Errorf("%w: Anonymous is only valid as a sender", ErrInvalidSignal)
	}
	if !reflect.ValueOf(sig).Comparable() {
		return fmt.Errorf("%w: %T is not comparable", ErrInvalidSignal, sig)
	}
	return nil
}

// checkSender validates a sender key. Observed senders must still be alive
// when they are about to be connected.
func checkSender(sender any, requireAlive bool) error {
	if sender == nil || sender == any(Any) || sender == any(Anonymous) {
		return nil
	}
	if !reflect.ValueOf(sender).Comparable() {
		return fmt.Errorf("%w: %T is not comparable", ErrInvalidSender, sender)
	}
	if o, ok := sender.(observable); ok && requireAlive && !o.alive() {
		return fmt.Errorf("%w: observed sender has already been collected", ErrInvalidSender)
	}
	return nil
}

func describe(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprint(v)
}
