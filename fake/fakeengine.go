// File: fake/fakeengine.go
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-requests/api"
)

// Engine is a scriptable api.TransferEngine: it records admitted transfers
// and lets the test decide when each one finishes.
type Engine struct {
	mu sync.Mutex

	sock api.SocketInterestFunc
	tmo  api.TimeoutFunc

	added    []api.Transfer
	inFlight map[api.Transfer]struct{}
	finished []api.Message
	removed  []api.Transfer

	// AddErr, when set, fails the next Add calls.
	AddErr error

	socketActions  int
	timeoutActions int
	closed         bool
}

var _ api.TransferEngine = (*Engine)(nil)

// NewEngine builds an idle fake engine.
func NewEngine() *Engine {
	return &Engine{inFlight: make(map[api.Transfer]struct{})}
}

func (e *Engine) Bind(sock api.SocketInterestFunc, tmo api.TimeoutFunc) {
	e.sock = sock
	e.tmo = tmo
}

func (e *Engine) Add(t api.Transfer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return api.ErrEngineClosed
	}
	if e.AddErr != nil {
		return e.AddErr
	}
	e.added = append(e.added, t)
	e.inFlight[t] = struct{}{}
	return nil
}

func (e *Engine) SocketAction(fd int, flags api.IOFlags) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.socketActions++
	return len(e.inFlight)
}

func (e *Engine) TimeoutAction() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeoutActions++
	return len(e.inFlight)
}

func (e *Engine) ReadMessage() (api.Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.finished) == 0 {
		return api.Message{}, false
	}
	msg := e.finished[0]
	e.finished = e.finished[1:]
	return msg, true
}

func (e *Engine) Remove(t api.Transfer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, t)
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Interest invokes the socket-interest callback installed by Bind, standing
// in for the engine declaring, changing or withdrawing interest in fd.
// Callers must not race it with reactor activity.
func (e *Engine) Interest(fd int, flags api.IOFlags, remove bool) {
	e.sock(fd, flags, remove)
}

// ChangeTimeout invokes the timeout callback installed by Bind; a negative
// duration stands in for the engine needing no time-driven progress step.
func (e *Engine) ChangeTimeout(d time.Duration) {
	e.tmo(d)
}

// Complete marks an admitted transfer finished with the given outcome. The
// message surfaces on the next drain (timer or socket progress step).
func (e *Engine) Complete(t api.Transfer, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, t)
	e.finished = append(e.finished, api.Message{Transfer: t, Err: err})
}

// Added returns a snapshot of every transfer admitted so far.
func (e *Engine) Added() []api.Transfer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]api.Transfer(nil), e.added...)
}

// Removed returns a snapshot of transfers released after completion.
func (e *Engine) Removed() []api.Transfer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]api.Transfer(nil), e.removed...)
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
