package signal

import "github.com/dshills/rpgtask/internal/logging"

// Option configures a single Connect, Disconnect, or Send call.
type Option func(*callConfig)

// callConfig contains the per-call settings.
type callConfig struct {
	// sender is the sender key. Defaults to Any.
	sender any

	// weak overrides the registry's weak default when set.
	weak *bool
}

// WithSender sets the sender. Use Observe for senders that should be
// cleaned up automatically when they are collected.
func WithSender(sender any) Option {
	return func(c *callConfig) {
		c.sender = sender
	}
}

// Weak selects weak (true) or strong (false) registration for Connect.
// Disconnect and Send ignore it.
func Weak(weak bool) Option {
	return func(c *callConfig) {
		c.weak = &weak
	}
}

// Strong is shorthand for Weak(false). A strongly connected handler stays
// alive until it is disconnected.
func Strong() Option {
	return Weak(false)
}

func (r *Registry) callConfig(opts []Option) (sender any, weak bool) {
	c := callConfig{sender: Any}
	for _, opt := range opts {
		opt(&c)
	}
	weak = r.weak
	if c.weak != nil {
		weak = *c.weak
	}
	return c.sender, weak
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for registry diagnostics.
func WithLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.WithComponent("signal")
		}
	}
}

// WithPolicy sets how Send reacts to failing handlers.
func WithPolicy(p Policy) RegistryOption {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithDefaultWeak sets whether Connect registers handlers weakly when the
// call does not say. The default is true.
func WithDefaultWeak(weak bool) RegistryOption {
	return func(r *Registry) {
		r.weak = weak
	}
}
