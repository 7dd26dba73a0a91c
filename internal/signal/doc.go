// Package signal provides the in-process signal dispatch registry.
//
// Components exchange Events through named signals without holding
// references to each other. Publishers send an event on a signal, optionally
// naming a sender; subscribers connect handlers to a (signal, sender) pair
// or to the Any wildcard in either position.
//
// # Lifetimes
//
// Subscriptions never keep their handler's receiver or their sender alive.
// A handler built with Method is held weakly by default:
//
//	player := &Player{Name: "ivan"}
//	reg.Connect(signal.Method(player, (*Player).OnDamage), "damage")
//
// When player is collected, the subscription is removed from every bucket
// that held it, with no call to Disconnect. Senders wrapped with Observe get
// the same treatment: once the sender is collected, everything connected
// for it is dropped.
//
// Cleanup is driven by the garbage collector. It runs on the runtime's
// cleanup goroutine at some point after the object becomes unreachable, so
// a Send that happens in between may still find the dead reference; such
// references are skipped and pruned on the spot.
//
// All connections of the same receiver and method share one weak
// reference, across registries, so the receiver's death is processed once.
//
// # Matching
//
// Send gathers handlers from (sender, signal), (sender, Any),
// (Any, signal) and (Any, Any), in that order, invoking each handler at most
// once. Within a bucket handlers run in connection order; connecting a
// handler again moves it to the end.
//
// # Failures
//
// Handlers run synchronously. With PolicyFailFast (the default) the first
// handler that returns an error or panics stops delivery and Send returns
// the responses gathered so far plus a *HandlerError or *PanicError. With
// PolicyIsolate every handler runs and each failure is recorded in its
// Response.
//
// # Registries
//
// New creates an independent registry; tests should use their own. The
// package-level Connect, Disconnect, and Send act on Default().
package signal
