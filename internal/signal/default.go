package signal

import (
	"context"
	"sync/atomic"
)

var defaultRegistry atomic.Pointer[Registry]

func init() {
	defaultRegistry.Store(New())
}

// Default returns the process-wide registry used by the package-level
// functions.
func Default() *Registry {
	return defaultRegistry.Load()
}

// SetDefault replaces the process-wide registry. It should be called during
// startup, before handlers are connected.
func SetDefault(r *Registry) {
	if r != nil {
		defaultRegistry.Store(r)
	}
}

// Connect is a shorthand for Default().Connect.
func Connect(h Handler, sig Signal, opts ...Option) error {
	return Default().Connect(h, sig, opts...)
}

// Disconnect is a shorthand for Default().Disconnect.
func Disconnect(h Handler, sig Signal, opts ...Option) error {
	return Default().Disconnect(h, sig, opts...)
}

// Send is a shorthand for Default().Send.
func Send(ctx context.Context, ev Event, sig Signal, opts ...Option) ([]Response, error) {
	return Default().Send(ctx, ev, sig, opts...)
}
