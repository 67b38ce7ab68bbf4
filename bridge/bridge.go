// File: bridge/bridge.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bridge

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-requests/api"
	"github.com/momentics/hioload-requests/engine"
	"github.com/momentics/hioload-requests/internal/queue"
	"github.com/momentics/hioload-requests/reactor"
)

// DefaultBatchLimit bounds how many pending requests one "perform requests"
// wake signal may admit. Bounded admission keeps a burst of submissions from
// starving the reactor's socket and timer servicing; requests beyond the
// limit stay queued and are admitted on the next signal.
const DefaultBatchLimit = 10

// Config holds bridge parameters, immutable per run.
type Config struct {
	BatchLimit      int
	ConnectTimeout  time.Duration
	TransferTimeout time.Duration
	ReadBufferSize  int
	MaxResponseSize int64
	Logger          zerolog.Logger

	// Engine and Reactor substitute the production implementations in
	// tests. Leave nil for normal operation.
	Engine  api.TransferEngine
	Reactor api.Reactor
}

// Bridge owns all cross-thread state: the two locked queues, the transfer
// engine, the reactor, and the torn-down flag.
type Bridge struct {
	cfg Config
	log zerolog.Logger

	pending   *queue.Locked[api.RequestContext]
	completed *queue.Locked[api.Message]
	deferred  *queue.Locked[func()]

	engine  api.TransferEngine
	reactor api.Reactor

	// polls maps descriptors to their poll contexts; reactor thread only.
	polls map[int]*pollContext

	mu       sync.Mutex
	started  bool
	done     chan struct{}
	tornDown atomic.Bool
}

var _ api.GracefulShutdown = (*Bridge)(nil)

// New constructs a bridge and wires the engine callbacks to the reactor.
// The reactor thread is not started until Start.
func New(cfg Config) (*Bridge, error) {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}
	b := &Bridge{
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "bridge").Logger(),
		pending:   queue.NewLocked[api.RequestContext](),
		completed: queue.NewLocked[api.Message](),
		deferred:  queue.NewLocked[func()](),
		polls:     make(map[int]*pollContext),
	}

	b.engine = cfg.Engine
	if b.engine == nil {
		b.engine = engine.New(engine.Config{
			ConnectTimeout:  cfg.ConnectTimeout,
			TransferTimeout: cfg.TransferTimeout,
			ReadBufferSize:  cfg.ReadBufferSize,
			MaxResponseSize: cfg.MaxResponseSize,
			Logger:          cfg.Logger,
		})
	}

	b.reactor = cfg.Reactor
	if b.reactor == nil {
		r, err := reactor.New(cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("reactor init: %w", err)
		}
		b.reactor = r
	}

	b.engine.Bind(b.onSocketInterest, b.onTimeoutChanged)
	b.reactor.Bind(api.ReactorHandlers{
		OnSocket:  b.onSocketReady,
		OnTimer:   b.onTimer,
		OnPerform: b.onPerform,
	})
	return b, nil
}

// Start spawns the reactor thread. Subsequent calls have no effect.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	if b.tornDown.Load() {
		return api.ErrBridgeDown
	}
	b.done = make(chan struct{})
	go func() {
		// The reactor is the bridge's dedicated background thread.
		runtime.LockOSThread()
		defer close(b.done)
		if err := b.reactor.Run(); err != nil {
			b.log.Error().Err(err).Msg("reactor loop failed")
		}
	}()
	b.started = true
	b.log.Debug().Int("batch_limit", b.cfg.BatchLimit).Msg("bridge started")
	return nil
}

// Enqueue hands a request context to the bridge. Ownership transfers to the
// pending queue; the context comes back exactly once through its completion
// callback (or never, if admission fails or the bridge shuts down first).
func (b *Bridge) Enqueue(rc api.RequestContext) error {
	if b.tornDown.Load() {
		return api.ErrBridgeDown
	}
	b.pending.Push(rc)
	return nil
}

// Defer schedules fn to run on the host thread during a subsequent Tick.
// Deferred actions are dropped once the bridge is torn down.
func (b *Bridge) Defer(fn func()) {
	if b.tornDown.Load() {
		return
	}
	b.deferred.Push(fn)
}

// Tick is the host tick hook. It signals the reactor when pending work
// exists, runs deferred actions, and drains at most one completed request,
// invoking its completion callback synchronously on the calling goroutine.
func (b *Bridge) Tick() {
	if b.tornDown.Load() {
		return
	}

	if !b.pending.Empty() {
		if err := b.reactor.WakePerform(); err != nil {
			b.log.Error().Err(err).Msg("perform signal failed")
		}
	}

	// Run the deferred actions present at tick start; actions deferred by
	// an action run on a later tick.
	for n := b.deferred.Len(); n > 0; n-- {
		b.deferred.Lock()
		if b.deferred.Empty() {
			b.deferred.Unlock()
			break
		}
		fn := b.deferred.PopLocked()
		b.deferred.Unlock()
		fn()
	}

	if !b.completed.Empty() {
		b.completed.Lock()
		msg := b.completed.PopLocked()
		b.completed.Unlock()
		// The callback runs outside the queue lock so it may enqueue
		// follow-up requests without deadlocking.
		msg.Transfer.Owner().OnCompleted(msg.Err)
	}
}

// Shutdown stops the reactor thread, joins it, tears down the engine and
// reactor, and sets the torn-down flag. Requests still queued or in flight
// are abandoned: neither completed nor failed. Idempotent.
func (b *Bridge) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tornDown.Load() {
		return nil
	}
	if b.started {
		if err := b.reactor.Stop(); err != nil {
			b.log.Error().Err(err).Msg("stop signal failed")
		}
		<-b.done
	}
	if err := b.engine.Close(); err != nil {
		b.log.Error().Err(err).Msg("engine teardown failed")
	}
	if err := b.reactor.Close(); err != nil {
		b.log.Error().Err(err).Msg("reactor teardown failed")
	}
	b.tornDown.Store(true)
	b.log.Debug().Msg("bridge torn down")
	return nil
}

// TornDown reports whether Shutdown has completed.
func (b *Bridge) TornDown() bool { return b.tornDown.Load() }

// Stats returns point-in-time queue depths for observability.
func (b *Bridge) Stats() map[string]any {
	return map[string]any{
		"pending":   b.pending.Len(),
		"completed": b.completed.Len(),
		"deferred":  b.deferred.Len(),
	}
}
