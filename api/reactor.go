// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral event reactor contract. The reactor owns the single
// background thread of the bridge: it multiplexes socket readiness, one
// shared deadline timer, and coalescing inter-thread wake signals.

package api

import "time"

// IOFlags describes socket readiness or interest directions.
type IOFlags uint8

const (
	// IORead marks read readiness or read interest.
	IORead IOFlags = 1 << iota
	// IOWrite marks write readiness or write interest.
	IOWrite
	// IOErr marks an error or hangup condition reported by the poller.
	IOErr
)

// ReactorHandlers carries the callbacks the reactor dispatches on its own
// thread. All three run on the reactor goroutine, never concurrently with
// each other.
type ReactorHandlers struct {
	// OnSocket is invoked when a registered descriptor becomes ready.
	OnSocket func(fd int, flags IOFlags)
	// OnTimer is invoked when the shared deadline timer fires.
	OnTimer func()
	// OnPerform is invoked after a WakePerform signal. Signals coalesce:
	// any number of sends before dispatch results in one invocation, so the
	// handler must re-check its queues rather than count wakeups.
	OnPerform func()
}

// Reactor is the event loop driving the bridge's background thread.
//
// Bind must be called before Run. AddSocket, ModifySocket, RemoveSocket,
// ArmTimer and DisarmTimer are reactor-thread-only. WakePerform and Stop may
// be called from any goroutine.
type Reactor interface {
	// Bind installs the dispatch handlers.
	Bind(h ReactorHandlers)

	// Run executes the loop until Stop is signaled. It blocks the calling
	// goroutine; the bridge runs it on a locked OS thread.
	Run() error

	// AddSocket registers a descriptor for the given interest directions.
	AddSocket(fd int, flags IOFlags) error
	// ModifySocket changes the interest directions of a registered descriptor.
	ModifySocket(fd int, flags IOFlags) error
	// RemoveSocket deregisters a descriptor.
	RemoveSocket(fd int) error

	// ArmTimer (re)arms the shared one-shot timer to fire after d.
	ArmTimer(d time.Duration) error
	// DisarmTimer cancels a pending timer without firing it.
	DisarmTimer() error

	// WakePerform sends the coalescing "perform requests" signal.
	WakePerform() error
	// Stop sends the coalescing stop signal; Run returns after dispatching it.
	Stop() error

	// Close releases reactor resources. Call only after Run has returned.
	Close() error
}
