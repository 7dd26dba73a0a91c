package signal

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dshills/rpgtask/internal/logging"
	"github.com/dshills/rpgtask/internal/signal/dispatch"
)

// entry is one handler occurrence in a (sender, signal) bucket.
type entry struct {
	key handlerKey
	ref handlerRef
}

// Registry maps (sender, signal) pairs to ordered handler lists.
// It is safe for concurrent use; a single mutex guards all three indexes
// so no operation or cleanup ever observes them half-updated.
type Registry struct {
	mu sync.Mutex

	// connections maps sender -> signal -> handlers in connection order.
	connections map[any]map[Signal][]*entry

	// senders holds the stop functions of weak sender observations.
	senders map[any]func()

	// backIndex maps a handler to the senders whose buckets hold it.
	backIndex map[handlerKey]map[any]struct{}

	dispatcher *dispatch.Dispatcher[Event]
	logger     *logging.Logger
	policy     Policy
	weak       bool
}

// New creates an empty registry.
func New(opts ...RegistryOption) *Registry {
	r := &Registry{
		connections: make(map[any]map[Signal][]*entry),
		senders:     make(map[any]func()),
		backIndex:   make(map[handlerKey]map[any]struct{}),
		logger:      logging.Discard(),
		policy:      PolicyFailFast,
		weak:        true,
	}
	for _, opt := range opts {
		opt(r)
	}

	mode := dispatch.StopOnFailure
	if r.policy == PolicyIsolate {
		mode = dispatch.Continue
	}
	r.dispatcher = dispatch.New[Event](
		dispatch.WithMode(mode),
		dispatch.WithPanicFunc(func(id, name string, p *dispatch.Panic) {
			r.logger.Warn("handler panicked", "dispatch_id", id, "handler", name, "value", p.Value)
		}),
	)
	return r
}

// Policy returns the registry's failure policy.
func (r *Registry) Policy() Policy {
	return r.policy
}

// Connect subscribes h to sig. By default the sender is Any and h is held
// weakly: bound methods do not keep their receiver alive, and the
// subscription disappears when the receiver is collected.
//
// Connecting a handler that is already in the (sender, signal) bucket
// moves it to the end of the bucket.
func (r *Registry) Connect(h Handler, sig Signal, opts ...Option) error {
	if err := checkSignal(sig); err != nil {
		return err
	}
	sender, weak := r.callConfig(opts)
	if err := checkSender(sender, true); err != nil {
		return err
	}
	key, err := identify(h)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ref, err := r.wrap(h, weak)
	if err != nil {
		return err
	}
	if err := r.observe(sender); err != nil {
		r.releaseIfUnused(key)
		return err
	}

	signals, ok := r.connections[sender]
	if !ok {
		signals = make(map[Signal][]*entry)
		r.connections[sender] = signals
	}

	bucket := signals[sig]
	if i := indexOf(bucket, key); i >= 0 {
		bucket = slices.Delete(bucket, i, i+1)
	}
	signals[sig] = append(bucket, &entry{key: key, ref: ref})
	r.link(key, sender)

	r.logger.Debug("connected", "signal", describe(sig), "sender", describe(sender), "handler", describeHandler(h), "weak", weak)
	return nil
}

// Disconnect removes h from the (sender, sig) bucket. It returns
// ErrNoSuchSubscription when the handler is not there.
func (r *Registry) Disconnect(h Handler, sig Signal, opts ...Option) error {
	if err := checkSignal(sig); err != nil {
		return err
	}
	sender, _ := r.callConfig(opts)
	if err := checkSender(sender, false); err != nil {
		return err
	}
	key, err := identify(h)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.connections[sender][sig]
	if !ok {
		return fmt.Errorf("%w: nothing connected to signal %s from sender %s", ErrNoSuchSubscription, describe(sig), describe(sender))
	}
	i := indexOf(bucket, key)
	if i < 0 {
		return fmt.Errorf("%w: %s is not connected to signal %s from sender %s", ErrNoSuchSubscription, describeHandler(h), describe(sig), describe(sender))
	}

	r.removeAt(sender, sig, i)
	r.unlinkIfAbsent(key, sender)

	r.logger.Debug("disconnected", "signal", describe(sig), "sender", describe(sender), "handler", describeHandler(h))
	return nil
}

// Clear removes every subscription and stops observing every sender.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stop := range r.senders {
		stop()
	}
	for key := range r.backIndex {
		r.release(key)
	}
	r.connections = make(map[any]map[Signal][]*entry)
	r.senders = make(map[any]func())
	r.backIndex = make(map[handlerKey]map[any]struct{})
}

// Receivers returns the live handlers of the exact (sender, sig) bucket in
// connection order. Wildcard buckets are not merged in; use Match for that.
func (r *Registry) Receivers(sig Signal, opts ...Option) []Handler {
	sender, _ := r.callConfig(opts)
	if checkSignal(sig) != nil || checkSender(sender, false) != nil {
		return nil
	}

	r.mu.Lock()
	bucket := slices.Clone(r.connections[sender][sig])
	r.mu.Unlock()

	var handlers []Handler
	for _, e := range bucket {
		if h := e.ref.resolve(); h != nil {
			handlers = append(handlers, h)
		}
	}
	return handlers
}

// Match returns the live handlers Send would invoke for sig and the sender
// in opts, in invocation order.
func (r *Registry) Match(sig Signal, opts ...Option) []Handler {
	sender, _ := r.callConfig(opts)
	if checkSignal(sig) != nil || checkSender(sender, false) != nil {
		return nil
	}
	handlers, _ := r.live(sig, sender)
	return handlers
}

// Stats describes the size of the registry's indexes.
type Stats struct {
	// Senders is the number of senders with at least one subscription.
	Senders int

	// Buckets is the number of (sender, signal) pairs.
	Buckets int

	// Connections is the number of handler occurrences across all buckets.
	Connections int

	// Handlers is the number of distinct handlers in the back index.
	Handlers int

	// Observed is the number of senders being watched for collection.
	Observed int
}

// Stats returns the current index sizes.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Senders:  len(r.connections),
		Handlers: len(r.backIndex),
		Observed: len(r.senders),
	}
	for _, signals := range r.connections {
		s.Buckets += len(signals)
		for _, bucket := range signals {
			s.Connections += len(bucket)
		}
	}
	return s
}

// DispatchStats returns handler execution statistics.
func (r *Registry) DispatchStats() dispatch.Stats {
	return r.dispatcher.Stats()
}

// wrap builds the bucket reference for h. Must be called with r.mu held.
func (r *Registry) wrap(h Handler, weak bool) (handlerRef, error) {
	if !weak {
		return strongRef{h: h}, nil
	}
	if b, ok := h.(boundHandler); ok {
		return weakBound(b, r, r.handlerDied)
	}
	// Go functions are never collected as separate objects, so a plain
	// function is held as is.
	if isFunc(h) {
		return strongRef{h: h}, nil
	}
	return nil, fmt.Errorf("%w: %T cannot be held weakly, use Method or Strong", ErrUnsupportedHandler, h)
}

// observe starts watching sender if it is observable and not watched yet.
// Must be called with r.mu held.
func (r *Registry) observe(sender any) error {
	o, ok := sender.(observable)
	if !ok {
		return nil
	}
	if _, watched := r.senders[sender]; watched {
		return nil
	}
	stop, ok := o.observe(func() { r.senderDied(sender) })
	if !ok {
		return fmt.Errorf("%w: observed sender has already been collected", ErrInvalidSender)
	}
	r.senders[sender] = stop
	return nil
}

// handlerDied is the deletion callback for weakly held handlers.
func (r *Registry) handlerDied(key handlerKey) {
	defer r.recoverCleanup("handler", key)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.purgeHandler(key)
	r.logger.Debug("handler collected", "handler", key.String(), "removed", n)
}

// senderDied removes every subscription made for a collected sender.
func (r *Registry) senderDied(sender any) {
	defer r.recoverCleanup("sender", sender)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, bucket := range r.connections[sender] {
		for _, e := range bucket {
			r.unlink(e.key, sender)
		}
	}
	delete(r.connections, sender)
	delete(r.senders, sender)

	r.logger.Debug("sender collected", "sender", describe(sender))
}

func (r *Registry) recoverCleanup(kind string, target any) {
	if v := recover(); v != nil {
		r.logger.Warn("cleanup failed", "kind", kind, "target", fmt.Sprint(target), "panic", v)
	}
}

// purgeHandler removes key from every bucket that holds it and returns the
// number of occurrences removed. Must be called with r.mu held.
func (r *Registry) purgeHandler(key handlerKey) int {
	removed := 0
	for sender := range r.backIndex[key] {
		signals := r.connections[sender]
		for sig, bucket := range signals {
			if i := indexOf(bucket, key); i >= 0 {
				r.removeAt(sender, sig, i)
				removed++
			}
		}
	}
	delete(r.backIndex, key)
	r.release(key)
	return removed
}

// removeAt deletes bucket[i] and drops the bucket and the sender entry
// when they become empty. Must be called with r.mu held.
func (r *Registry) removeAt(sender any, sig Signal, i int) {
	signals := r.connections[sender]
	bucket := slices.Delete(signals[sig], i, i+1)
	if len(bucket) == 0 {
		delete(signals, sig)
	} else {
		signals[sig] = bucket
	}
	if len(signals) == 0 {
		r.dropSender(sender)
	}
}

func (r *Registry) dropSender(sender any) {
	delete(r.connections, sender)
	if stop, ok := r.senders[sender]; ok {
		stop()
		delete(r.senders, sender)
	}
}

func (r *Registry) link(key handlerKey, sender any) {
	set, ok := r.backIndex[key]
	if !ok {
		set = make(map[any]struct{})
		r.backIndex[key] = set
	}
	set[sender] = struct{}{}
}

func (r *Registry) unlink(key handlerKey, sender any) {
	set, ok := r.backIndex[key]
	if !ok {
		return
	}
	delete(set, sender)
	if len(set) == 0 {
		delete(r.backIndex, key)
		r.release(key)
	}
}

// release stops the shared reference of a bound method from calling back
// into r. Must be called with r.mu held, after key left the back index.
func (r *Registry) release(key handlerKey) {
	if key.owner == nil {
		return
	}
	if b := refs.lookup(key); b != nil {
		b.dropCallback(r)
	}
}

// releaseIfUnused releases key unless a bucket of r still holds it.
func (r *Registry) releaseIfUnused(key handlerKey) {
	if _, ok := r.backIndex[key]; !ok {
		r.release(key)
	}
}

// unlinkIfAbsent drops the back reference from key to sender unless some
// bucket of sender still holds key.
func (r *Registry) unlinkIfAbsent(key handlerKey, sender any) {
	for _, bucket := range r.connections[sender] {
		if indexOf(bucket, key) >= 0 {
			return
		}
	}
	r.unlink(key, sender)
}

func indexOf(bucket []*entry, key handlerKey) int {
	return slices.IndexFunc(bucket, func(e *entry) bool {
		return e.key == key
	})
}
