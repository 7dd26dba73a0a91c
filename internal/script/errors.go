package script

import (
	"errors"
	"fmt"
)

// Errors returned by script operations.
var (
	// ErrNoHandleFunc indicates the script does not define handle(event).
	ErrNoHandleFunc = errors.New("script does not define handle")

	// ErrClosed indicates the handler has been closed.
	ErrClosed = errors.New("script is closed")
)

// ScriptError reports a failure while loading or running a script.
type ScriptError struct {
	// Script is the script name.
	Script string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %v", e.Script, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}
