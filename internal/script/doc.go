// Package script runs Lua files as signal handlers.
//
// A script defines a global function handle(event) and may set the globals
// signal and sender to choose what it listens to:
//
//	signal = "damage"
//	sender = "boss"
//
//	function handle(event)
//	    log("ouch " .. event.amount)
//	    return { blocked = event.amount > 10 }
//	end
//
// The event arrives as a Lua table and a returned table comes back as a
// signal.Event. Scripts run in a restricted state with only the base, table,
// string and math libraries, and every call is bounded by a timeout.
//
// A Handler is connected through signal.Method, so the registry holds it
// weakly: once the application drops a Handler, its subscriptions go away.
package script
