package signal

import (
	"slices"
	"sync"
	"weak"
)

// handlerRef is what a registry bucket stores for a handler.
type handlerRef interface {
	// resolve returns the live handler, or nil once it is gone.
	resolve() Handler
}

// strongRef holds a handler for as long as it is connected.
type strongRef struct {
	h Handler
}

func (s strongRef) resolve() Handler {
	return s.h
}

// boundRef tracks a bound method without keeping its receiver alive.
// All registries that connect the same receiver and method share one
// boundRef, so the receiver's death is observed exactly once.
type boundRef struct {
	key    handlerKey
	name   string
	target func() Handler

	mu        sync.Mutex
	fired     bool
	callbacks []deletionCallback
}

// deletionCallback is registered once per registry.
type deletionCallback struct {
	owner any
	fn    func(handlerKey)
}

func (b *boundRef) resolve() Handler {
	return b.target()
}

func (b *boundRef) String() string {
	return b.name
}

// addCallback registers fn to run when the receiver dies. A second callback
// from the same owner replaces the first. It returns false if the ref has
// already fired and can no longer be shared.
func (b *boundRef) addCallback(owner any, fn func(handlerKey)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fired {
		return false
	}
	for i, cb := range b.callbacks {
		if cb.owner == owner {
			b.callbacks[i].fn = fn
			return true
		}
	}
	b.callbacks = append(b.callbacks, deletionCallback{owner: owner, fn: fn})
	return true
}

// dropCallback removes the deletion callback registered by owner.
func (b *boundRef) dropCallback(owner any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.callbacks = slices.DeleteFunc(b.callbacks, func(cb deletionCallback) bool {
		return cb.owner == owner
	})
}

// fire runs every deletion callback once. A panicking callback does not
// stop the others.
func (b *boundRef) fire() {
	b.mu.Lock()
	if b.fired {
		b.mu.Unlock()
		return
	}
	b.fired = true
	callbacks := b.callbacks
	b.callbacks = nil
	b.mu.Unlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				_ = recover()
			}()
			cb.fn(b.key)
		}()
	}
}

// refCache shares boundRefs between connections of the same receiver and
// method. Values are weak: an entry whose ref was collected is replaced on
// the next lookup and dropped when the receiver dies.
type refCache struct {
	mu sync.Mutex
	m  map[handlerKey]weak.Pointer[boundRef]
}

var refs = &refCache{m: make(map[handlerKey]weak.Pointer[boundRef])}

// ownerCleanup is the argument of the cleanup attached to a receiver.
type ownerCleanup struct {
	key handlerKey
	ref weak.Pointer[boundRef]
}

// ownerDied runs on the runtime's cleanup goroutine after a receiver
// became unreachable.
func ownerDied(arg ownerCleanup) {
	refs.forget(arg.key, arg.ref)
	if b := arg.ref.Value(); b != nil {
		b.fire()
	}
}

// weakBound returns the shared boundRef for h, registering fn as the
// deletion callback for owner.
func weakBound(h boundHandler, owner any, fn func(handlerKey)) (*boundRef, error) {
	key, err := h.identity()
	if err != nil {
		return nil, err
	}

	refs.mu.Lock()
	defer refs.mu.Unlock()

	if wp, ok := refs.m[key]; ok {
		if b := wp.Value(); b != nil && b.addCallback(owner, fn) {
			return b, nil
		}
	}

	b := h.newRef(key)
	b.addCallback(owner, fn)
	wp := weak.Make(b)
	refs.m[key] = wp
	h.watch(ownerCleanup{key: key, ref: wp})
	return b, nil
}

func (c *refCache) forget(key handlerKey, wp weak.Pointer[boundRef]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.m[key]; ok && cur == wp {
		delete(c.m, key)
	}
}

func (c *refCache) lookup(key handlerKey) *boundRef {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wp, ok := c.m[key]; ok {
		return wp.Value()
	}
	return nil
}
