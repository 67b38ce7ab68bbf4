// File: api/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Multi-transfer engine contract. The engine executes many network transfers
// concurrently over non-blocking sockets; it never owns a thread of its own
// and is driven exclusively by progress-step calls from the reactor thread.

package api

import "time"

// SocketInterestFunc is invoked by the engine whenever it starts, changes or
// stops interest in a socket descriptor. remove=true means the engine no
// longer wants any events for fd and its poll registration must be torn down.
type SocketInterestFunc func(fd int, interest IOFlags, remove bool)

// TimeoutFunc is invoked by the engine whenever it recomputes how soon it
// next needs a time-driven progress step. A negative duration disarms the
// timer; zero means "as soon as possible".
type TimeoutFunc func(d time.Duration)

// Transfer is an opaque in-flight operation handle. The engine drives it;
// the bridge only uses the back-reference to route the terminal outcome.
type Transfer interface {
	// Owner returns the request context this transfer belongs to.
	Owner() RequestContext
}

// Message reports one finished transfer pulled from the engine.
type Message struct {
	Transfer Transfer
	// Err is nil on success; transfer-level failures (connect refused,
	// timeout, malformed response) arrive here and flow through the same
	// completion path as successes.
	Err error
}

// TransferEngine is the multi-socket concurrent transfer engine. All methods
// are reactor-thread-only except Bind, which must be called once before the
// reactor starts.
type TransferEngine interface {
	// Bind installs the socket-interest and timeout callbacks.
	Bind(sock SocketInterestFunc, tmo TimeoutFunc)

	// Add admits a transfer and starts driving it.
	Add(t Transfer) error

	// SocketAction advances whatever transfer owns fd after the given
	// readiness, returning the number of still-running transfers.
	SocketAction(fd int, flags IOFlags) int

	// TimeoutAction performs a time-driven progress step (deadline expiry),
	// returning the number of still-running transfers.
	TimeoutAction() int

	// ReadMessage pops one finished-transfer notification, if any. Callers
	// drain in a loop after every progress step.
	ReadMessage() (Message, bool)

	// Remove releases the engine-side resources of a finished transfer.
	// Called once per message returned by ReadMessage.
	Remove(t Transfer)

	// Close force-releases every remaining transfer. In-flight work is
	// abandoned, not completed.
	Close() error
}
