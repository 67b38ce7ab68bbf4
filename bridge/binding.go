// File: bridge/binding.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transfer engine binding: wires the engine's socket-interest and
// timeout-change callbacks into the reactor's poll and timer primitives, and
// drains finished transfers into the completed queue after every progress
// step. Everything in this file runs on the reactor thread.

package bridge

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-requests/api"
)

// pollContext is the reactor-side state of one descriptor under active
// multiplexing. Created on the engine's first interest in the descriptor,
// destroyed on its removal notice.
type pollContext struct {
	fd    int
	flags api.IOFlags
}

// onSocketInterest implements api.SocketInterestFunc.
func (b *Bridge) onSocketInterest(fd int, interest api.IOFlags, remove bool) {
	if remove {
		if _, ok := b.polls[fd]; ok {
			delete(b.polls, fd)
			if err := b.reactor.RemoveSocket(fd); err != nil {
				b.deferLog(err, fmt.Sprintf("deregister fd %d", fd))
			}
		}
		return
	}

	pc, ok := b.polls[fd]
	if !ok {
		if err := b.reactor.AddSocket(fd, interest); err != nil {
			// No poll context is retained for a descriptor the reactor
			// never registered.
			b.deferLog(err, fmt.Sprintf("register fd %d", fd))
			return
		}
		pc = &pollContext{fd: fd}
		b.polls[fd] = pc
	} else if pc.flags != interest {
		if err := b.reactor.ModifySocket(fd, interest); err != nil {
			b.deferLog(err, fmt.Sprintf("reregister fd %d", fd))
		}
	}
	pc.flags = interest
}

// onTimeoutChanged implements api.TimeoutFunc.
func (b *Bridge) onTimeoutChanged(d time.Duration) {
	var err error
	if d < 0 {
		err = b.reactor.DisarmTimer()
	} else {
		err = b.reactor.ArmTimer(d)
	}
	if err != nil {
		b.deferLog(err, "timer update")
	}
}

// onTimer handles the shared timer firing.
func (b *Bridge) onTimer() {
	b.engine.TimeoutAction()
	b.drainFinished()
}

// onSocketReady handles readiness on one descriptor.
func (b *Bridge) onSocketReady(fd int, flags api.IOFlags) {
	b.engine.SocketAction(fd, flags)
	b.drainFinished()
}

// onPerform handles the "perform requests" wake signal: bounded admission
// from the pending queue into the engine. The queue lock covers only the
// pops; initialization may resolve names, and a host-thread Enqueue must
// never wait on that. Contexts beyond the batch limit stay queued; the host
// tick re-signals while the queue is non-empty.
func (b *Bridge) onPerform() {
	batch := make([]api.RequestContext, 0, b.cfg.BatchLimit)
	b.pending.Lock()
	for len(batch) < b.cfg.BatchLimit && !b.pending.Empty() {
		batch = append(batch, b.pending.PopLocked())
	}
	b.pending.Unlock()

	for _, rc := range batch {
		t, err := rc.InitTransfer()
		if err != nil {
			// Rejected admission: the context is dropped without a
			// completion callback.
			b.deferLog(err, "transfer init")
			continue
		}
		if err := b.engine.Add(t); err != nil {
			b.deferLog(err, "transfer admit")
		}
	}
}

// drainFinished moves every finished transfer out of the engine and into
// the completed queue. It must run after every progress step; draining
// only periodically would delay completions by up to one timer period.
func (b *Bridge) drainFinished() {
	for {
		msg, ok := b.engine.ReadMessage()
		if !ok {
			return
		}
		b.engine.Remove(msg.Transfer)
		b.completed.Lock()
		b.completed.PushLocked(msg)
		b.completed.Unlock()
	}
}

// deferLog routes a reactor-thread log event through the deferred-action
// queue so it is emitted on the host thread, and suppressed after teardown.
func (b *Bridge) deferLog(err error, what string) {
	b.Defer(func() {
		b.log.Error().Err(err).Msg(what + " failed")
	})
}
