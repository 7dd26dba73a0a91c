package signal

import (
	"context"
	"fmt"
)

// Listener describes a subscription that is declared up front and applied
// to a registry later, typically from a component's constructor.
type Listener struct {
	Handler Handler
	Signal  Signal
	Sender  any

	// Weak selects weak or strong registration. Nil leaves the choice to
	// the registry the listener subscribes to.
	Weak *bool
}

// Listen declares a listener for sig. The sender defaults to Any; Weak or
// Strong fix the registration mode, otherwise the registry default applies.
func Listen(sig Signal, h Handler, opts ...Option) Listener {
	c := callConfig{sender: Any}
	for _, opt := range opts {
		opt(&c)
	}
	return Listener{Handler: h, Signal: sig, Sender: c.sender, Weak: c.weak}
}

// Subscribe connects the listener to r.
func (l Listener) Subscribe(r *Registry) error {
	opts := []Option{WithSender(l.Sender)}
	if l.Weak != nil {
		opts = append(opts, Weak(*l.Weak))
	}
	return r.Connect(l.Handler, l.Signal, opts...)
}

// Unsubscribe disconnects the listener from r.
func (l Listener) Unsubscribe(r *Registry) error {
	return r.Disconnect(l.Handler, l.Signal, WithSender(l.Sender))
}

// Publisher wraps fn so that every event it produces is sent on sig from
// sender. The wrapped function returns the produced event; a failed send is
// reported as its error.
func Publisher[A any](r *Registry, sig Signal, sender any, fn func(context.Context, A) (Event, error)) func(context.Context, A) (Event, error) {
	return func(ctx context.Context, arg A) (Event, error) {
		ev, err := fn(ctx, arg)
		if err != nil {
			return ev, err
		}
		if _, err := r.Send(ctx, ev, sig, WithSender(sender)); err != nil {
			return ev, fmt.Errorf("publishing %s: %w", describe(sig), err)
		}
		return ev, nil
	}
}
