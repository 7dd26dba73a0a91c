package signal

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dshills/rpgtask/internal/signal/dispatch"
)

// Send delivers ev to every live handler connected to sig and the sender in
// opts (Any by default). Handlers are collected from four buckets in this
// order, each handler being invoked at most once:
//
//	(sender, sig) -> (sender, Any) -> (Any, sig) -> (Any, Any)
//
// Handlers whose receiver has been collected are skipped and pruned from
// the registry. Handlers run synchronously in the caller's goroutine.
//
// Under PolicyFailFast the first failing handler stops delivery: the
// responses of the handlers that ran before it are returned together with a
// *HandlerError or *PanicError. Under PolicyIsolate every handler runs and
// the returned error joins all failures.
func (r *Registry) Send(ctx context.Context, ev Event, sig Signal, opts ...Option) ([]Response, error) {
	if err := checkSignal(sig); err != nil {
		return nil, err
	}
	sender, _ := r.callConfig(opts)
	if err := checkSender(sender, false); err != nil {
		return nil, err
	}

	handlers, dead := r.live(sig, sender)
	if len(dead) > 0 {
		r.prune(dead)
	}
	if len(handlers) == 0 {
		return nil, nil
	}

	id := uuid.NewString()
	r.logger.Debug("sending", "dispatch_id", id, "signal", describe(sig), "sender", describe(sender), "handlers", len(handlers))

	calls := make([]dispatch.Call[Event], len(handlers))
	for i, h := range handlers {
		calls[i] = dispatch.Call[Event]{Name: describeHandler(h), Fn: h.Handle}
	}
	report := r.dispatcher.Run(ctx, id, ev, calls)

	responses := make([]Response, 0, len(report.Outcomes))
	var errs []error
	for _, o := range report.Outcomes {
		resp := Response{Handler: handlers[o.Index], Value: o.Value}
		if o.Failed() {
			err := failure(id, sig, o)
			if report.Stopped {
				r.logger.Debug("delivery aborted", "dispatch_id", id, "error", err)
				return responses, err
			}
			resp.Err = err
			errs = append(errs, err)
		}
		responses = append(responses, resp)
	}
	return responses, errors.Join(errs...)
}

// live snapshots the matching handlers under the lock and resolves them
// outside it. It returns the keys of references that turned out dead.
func (r *Registry) live(sig Signal, sender any) ([]Handler, []handlerKey) {
	scopes := [...]struct {
		sender any
		sig    Signal
	}{
		{sender, sig},
		{sender, Any},
		{Any, sig},
		{Any, Any},
	}

	r.mu.Lock()
	var candidates []*entry
	seen := make(map[handlerKey]struct{})
	for _, scope := range scopes {
		for _, e := range r.connections[scope.sender][scope.sig] {
			if _, dup := seen[e.key]; dup {
				continue
			}
			seen[e.key] = struct{}{}
			candidates = append(candidates, e)
		}
	}
	r.mu.Unlock()

	var handlers []Handler
	var dead []handlerKey
	for _, e := range candidates {
		h := e.ref.resolve()
		if h == nil {
			dead = append(dead, e.key)
			continue
		}
		handlers = append(handlers, h)
	}
	return handlers, dead
}

// prune removes handlers found dead during a send.
func (r *Registry) prune(dead []handlerKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range dead {
		n := r.purgeHandler(key)
		r.logger.Debug("pruned dead handler", "handler", key.String(), "removed", n)
	}
}

func failure(id string, sig Signal, o dispatch.Outcome) error {
	if o.Panic != nil {
		return &PanicError{
			DispatchID: id,
			Signal:     sig,
			Handler:    o.Name,
			Value:      o.Panic.Value,
			Stack:      string(o.Panic.Stack),
		}
	}
	return &HandlerError{
		DispatchID: id,
		Signal:     sig,
		Handler:    o.Name,
		Err:        o.Err,
	}
}
