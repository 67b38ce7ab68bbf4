// File: engine/multi.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Multi drives an arbitrary number of concurrent transfers. Every method is
// reactor-thread-only (Bind excepted, pre-Run): the engine's socket table,
// deadline heap and finished queue need no locking because exactly one
// thread ever touches them.

package engine

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-requests/api"
)

// Config holds engine defaults. Per-transfer Options may override timeouts.
type Config struct {
	ConnectTimeout  time.Duration
	TransferTimeout time.Duration
	ReadBufferSize  int
	MaxResponseSize int64
	Logger          zerolog.Logger
}

// Multi is the multi-transfer engine. It implements api.TransferEngine.
type Multi struct {
	cfg Config
	log zerolog.Logger

	sockInterest   api.SocketInterestFunc
	timeoutChanged api.TimeoutFunc

	sockets   map[int]*Transfer
	deadlines transferHeap
	finished  []api.Message

	timerArmed bool
	armedAt    time.Time
	readBuf    []byte
	closed     bool
}

var _ api.TransferEngine = (*Multi)(nil)

// New constructs an engine with the given defaults.
func New(cfg Config) *Multi {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = 30 * time.Second
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 32 << 10
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = 16 << 20
	}
	return &Multi{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "engine").Logger(),
		sockets: make(map[int]*Transfer),
		readBuf: make([]byte, cfg.ReadBufferSize),
	}
}

// Bind installs the socket-interest and timeout callbacks.
func (m *Multi) Bind(sock api.SocketInterestFunc, tmo api.TimeoutFunc) {
	m.sockInterest = sock
	m.timeoutChanged = tmo
}

// Add admits a transfer: starts the non-blocking connect, registers the
// descriptor and recomputes the shared deadline.
func (m *Multi) Add(tr api.Transfer) error {
	if m.closed {
		return api.ErrEngineClosed
	}
	t, ok := tr.(*Transfer)
	if !ok {
		return fmt.Errorf("engine: foreign transfer type %T", tr)
	}

	fd, inProgress, err := sockConnect(t.opts.Addr)
	if err != nil {
		return err
	}
	t.fd = fd
	t.parser = newResponseParser(m.cfg.MaxResponseSize, t.opts.NoBody, t.opts.Upgrade)

	now := time.Now()
	connectTimeout := t.opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = m.cfg.ConnectTimeout
	}
	total := t.opts.Timeout
	if total <= 0 {
		total = m.cfg.TransferTimeout
	}
	t.overall = now.Add(total)
	t.deadline = now.Add(connectTimeout)
	if t.overall.Before(t.deadline) {
		t.deadline = t.overall
	}

	if inProgress {
		t.st = stateConnecting
	} else {
		t.st = stateWriting
		t.deadline = t.overall
	}

	m.sockets[fd] = t
	heap.Push(&m.deadlines, t)
	m.sockInterest(fd, api.IOWrite, false)
	m.updateTimer()

	m.log.Debug().Int("fd", fd).Str("host", t.opts.Host).Msg("transfer admitted")
	return nil
}

// SocketAction advances the transfer owning fd after the given readiness.
func (m *Multi) SocketAction(fd int, flags api.IOFlags) int {
	if t, ok := m.sockets[fd]; ok {
		m.advance(t, flags)
		m.updateTimer()
	}
	return len(m.sockets)
}

// TimeoutAction expires transfers past their effective deadline.
func (m *Multi) TimeoutAction() int {
	now := time.Now()
	for m.deadlines.Len() > 0 && !m.deadlines[0].deadline.After(now) {
		t := m.deadlines[0]
		m.log.Debug().Int("fd", t.fd).Str("host", t.opts.Host).Msg("transfer timed out")
		m.finish(t, api.ErrTransferTimeout)
	}
	m.updateTimer()
	return len(m.sockets)
}

// ReadMessage pops one finished-transfer notification.
func (m *Multi) ReadMessage() (api.Message, bool) {
	if len(m.finished) == 0 {
		return api.Message{}, false
	}
	msg := m.finished[0]
	m.finished = m.finished[1:]
	return msg, true
}

// Remove releases the descriptor of a finished transfer. Detached (upgraded)
// descriptors stay open; their lifetime belongs to the owner.
func (m *Multi) Remove(tr api.Transfer) {
	t, ok := tr.(*Transfer)
	if !ok {
		return
	}
	if t.fd >= 0 && !t.detached {
		sockClose(t.fd)
		t.fd = -1
	}
}

// Close abandons every remaining transfer. No completions are delivered.
func (m *Multi) Close() error {
	for fd, t := range m.sockets {
		sockClose(fd)
		t.fd = -1
		t.st = stateDone
	}
	m.sockets = make(map[int]*Transfer)
	m.deadlines = nil
	m.finished = nil
	m.closed = true
	return nil
}

func (m *Multi) advance(t *Transfer, flags api.IOFlags) {
	if t.st == stateConnecting {
		if flags&(api.IOWrite|api.IOErr) == 0 {
			return
		}
		if err := sockFinishConnect(t.fd); err != nil {
			m.finish(t, err)
			return
		}
		t.st = stateWriting
		t.deadline = t.overall
		heap.Fix(&m.deadlines, t.heapIdx)
	}

	if t.st == stateWriting {
		if flags&(api.IOWrite|api.IOErr) == 0 {
			return
		}
		for t.written < len(t.opts.Wire) {
			n, err := sockWrite(t.fd, t.opts.Wire[t.written:])
			if err == errAgain {
				return
			}
			if err != nil {
				m.finish(t, err)
				return
			}
			t.written += n
		}
		t.st = stateReading
		m.sockInterest(t.fd, api.IORead, false)
		return
	}

	if t.st == stateReading {
		for {
			n, err := sockRead(t.fd, m.readBuf)
			if err == errAgain {
				return
			}
			if err != nil {
				m.finish(t, err)
				return
			}
			if n == 0 {
				if done, perr := t.parser.feedEOF(); done {
					m.finish(t, nil)
				} else {
					m.finish(t, perr)
				}
				return
			}
			done, perr := t.parser.feed(m.readBuf[:n])
			if perr != nil {
				m.finish(t, perr)
				return
			}
			if done {
				m.finish(t, nil)
				return
			}
		}
	}
}

// finish detaches a transfer from the socket table and queues its message.
// The descriptor itself is released later in Remove, during the drain.
func (m *Multi) finish(t *Transfer, err error) {
	if t.st == stateDone {
		return
	}
	if err == nil {
		t.finishResult()
	}
	t.st = stateDone

	m.sockInterest(t.fd, 0, true)
	delete(m.sockets, t.fd)
	if t.heapIdx >= 0 {
		heap.Remove(&m.deadlines, t.heapIdx)
	}
	m.finished = append(m.finished, api.Message{Transfer: t, Err: err})
}

// updateTimer re-arms or disarms the shared timer whenever the earliest
// deadline changes.
func (m *Multi) updateTimer() {
	if m.timeoutChanged == nil {
		return
	}
	if m.deadlines.Len() == 0 {
		if m.timerArmed {
			m.timerArmed = false
			m.armedAt = time.Time{}
			m.timeoutChanged(-1)
		}
		return
	}
	next := m.deadlines[0].deadline
	if m.timerArmed && next.Equal(m.armedAt) {
		return
	}
	m.timerArmed = true
	m.armedAt = next
	d := time.Until(next)
	if d < 0 {
		d = 0
	}
	m.timeoutChanged(d)
}

// transferHeap orders transfers by effective deadline.
type transferHeap []*Transfer

func (h transferHeap) Len() int           { return len(h) }
func (h transferHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h transferHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *transferHeap) Push(x any) {
	t := x.(*Transfer)
	t.heapIdx = len(*h)
	*h = append(*h, t)
}

func (h *transferHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIdx = -1
	*h = old[:n-1]
	return t
}
