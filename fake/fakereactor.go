// File: fake/fakereactor.go
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
//
// FakeReactor provides a test Reactor: a channel-driven loop that dispatches
// the same handlers as the platform reactor, with helpers to inject socket
// readiness and timer fires and to synchronize with the loop goroutine.

package fake

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-requests/api"
)

// Reactor is a deterministic in-memory api.Reactor.
type Reactor struct {
	mu       sync.Mutex
	handlers api.ReactorHandlers

	ops      chan func()
	stopped  chan struct{}
	stopOnce sync.Once

	performPending atomic.Bool

	// AddSocketErr, when set, fails AddSocket calls (registration refused).
	AddSocketErr error

	// Observable state, guarded by mu.
	sockets    map[int]api.IOFlags
	timerArmed bool
	timerD     time.Duration
	closed     bool
}

var _ api.Reactor = (*Reactor)(nil)

// NewReactor builds a fake reactor ready to Run.
func NewReactor() *Reactor {
	return &Reactor{
		ops:     make(chan func(), 1024),
		stopped: make(chan struct{}),
		sockets: make(map[int]api.IOFlags),
	}
}

func (r *Reactor) Bind(h api.ReactorHandlers) { r.handlers = h }

// Run dispatches injected operations until Stop.
func (r *Reactor) Run() error {
	for {
		select {
		case <-r.stopped:
			return nil
		case fn := <-r.ops:
			fn()
		}
	}
}

func (r *Reactor) AddSocket(fd int, flags api.IOFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AddSocketErr != nil {
		return r.AddSocketErr
	}
	r.sockets[fd] = flags
	return nil
}

func (r *Reactor) ModifySocket(fd int, flags api.IOFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sockets[fd]; !ok {
		return fmt.Errorf("modify unregistered fd %d", fd)
	}
	r.sockets[fd] = flags
	return nil
}

func (r *Reactor) RemoveSocket(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sockets[fd]; !ok {
		return fmt.Errorf("remove unregistered fd %d", fd)
	}
	delete(r.sockets, fd)
	return nil
}

func (r *Reactor) ArmTimer(d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timerArmed = true
	r.timerD = d
	return nil
}

func (r *Reactor) DisarmTimer() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timerArmed = false
	return nil
}

// WakePerform coalesces like the eventfd-backed signal: sends before the
// loop dispatches one collapse into a single OnPerform invocation.
func (r *Reactor) WakePerform() error {
	if !r.performPending.CompareAndSwap(false, true) {
		return nil
	}
	r.post(func() {
		r.performPending.Store(false)
		if r.handlers.OnPerform != nil {
			r.handlers.OnPerform()
		}
	})
	return nil
}

func (r *Reactor) Stop() error {
	r.stopOnce.Do(func() { close(r.stopped) })
	return nil
}

func (r *Reactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// FireTimer injects a timer expiry.
func (r *Reactor) FireTimer() {
	r.post(func() {
		if r.handlers.OnTimer != nil {
			r.handlers.OnTimer()
		}
	})
}

// FireSocket injects readiness on a descriptor.
func (r *Reactor) FireSocket(fd int, flags api.IOFlags) {
	r.post(func() {
		if r.handlers.OnSocket != nil {
			r.handlers.OnSocket(fd, flags)
		}
	})
}

// Sync blocks until every previously injected operation has been dispatched.
func (r *Reactor) Sync() {
	done := make(chan struct{})
	r.post(func() { close(done) })
	select {
	case <-done:
	case <-r.stopped:
	}
}

// Sockets returns a snapshot of current registrations.
func (r *Reactor) Sockets() map[int]api.IOFlags {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]api.IOFlags, len(r.sockets))
	for fd, fl := range r.sockets {
		out[fd] = fl
	}
	return out
}

// TimerState reports whether the timer is armed and for how long.
func (r *Reactor) TimerState() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timerArmed, r.timerD
}

// Closed reports whether Close has been called.
func (r *Reactor) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Reactor) post(fn func()) {
	select {
	case r.ops <- fn:
	case <-r.stopped:
	}
}
