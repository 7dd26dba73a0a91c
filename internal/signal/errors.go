package signal

import (
	"errors"
	"fmt"
)

// Sentinel errors for the signal registry.
var (
	// ErrInvalidSignal is returned when a signal is nil, Anonymous, or not comparable.
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrInvalidSender is returned when a sender cannot be used as a registry key,
	// or when an observed sender has already been collected.
	ErrInvalidSender = errors.New("invalid sender")

	// ErrNoSuchSubscription is returned by Disconnect when the handler is not
	// connected to the given signal and sender.
	ErrNoSuchSubscription = errors.New("no such subscription")

	// ErrUnsupportedHandler is returned when a handler has no usable identity
	// or cannot be held weakly.
	ErrUnsupportedHandler = errors.New("unsupported handler")

	// ErrHandlerPanic is matched by PanicError through errors.Is.
	ErrHandlerPanic = errors.New("handler panicked")
)

// HandlerError wraps an error returned by a handler during Send.
type HandlerError struct {
	// DispatchID identifies the Send call.
	DispatchID string

	// Signal is the signal being sent.
	Signal Signal

	// Handler describes the failing handler.
	Handler string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on signal %v (dispatch %s): %v", e.Handler, e.Signal, e.DispatchID, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError reports a handler that panicked during Send.
type PanicError struct {
	// DispatchID identifies the Send call.
	DispatchID string

	// Signal is the signal being sent.
	Signal Signal

	// Handler describes the panicking handler.
	Handler string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s panicked on signal %v (dispatch %s): %v", e.Handler, e.Signal, e.DispatchID, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
