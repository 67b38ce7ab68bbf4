// File: bridge/bridge_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Core bridge semantics tested against the fake reactor and engine: bounded
// admission, one-per-tick completion drain, silent drop of rejected
// admissions, the engine binding's poll-context and timer wiring, and
// shutdown behavior.

package bridge_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-requests/api"
	"github.com/momentics/hioload-requests/bridge"
	"github.com/momentics/hioload-requests/fake"
)

type harness struct {
	b *bridge.Bridge
	r *fake.Reactor
	e *fake.Engine
}

func newHarness(t *testing.T, batch int) *harness {
	t.Helper()
	r := fake.NewReactor()
	e := fake.NewEngine()
	b, err := bridge.New(bridge.Config{
		BatchLimit: batch,
		Logger:     zerolog.Nop(),
		Engine:     e,
		Reactor:    r,
	})
	require.NoError(t, err)
	require.NoError(t, b.Start())
	t.Cleanup(func() { _ = b.Shutdown() })
	return &harness{b: b, r: r, e: e}
}

// tickAndSettle runs one host tick and waits for the reactor goroutine to
// process everything the tick signaled.
func (h *harness) tickAndSettle() {
	h.b.Tick()
	h.r.Sync()
}

func TestBoundedAdmission(t *testing.T) {
	h := newHarness(t, 10)

	ctxs := make([]*fake.Context, 15)
	for i := range ctxs {
		ctxs[i] = &fake.Context{}
		require.NoError(t, h.b.Enqueue(ctxs[i]))
	}

	// One perform signal admits at most the batch limit.
	h.tickAndSettle()
	assert.Len(t, h.e.Added(), 10)
	assert.Equal(t, 5, h.b.Stats()["pending"])

	// The next signal admits the remainder.
	h.tickAndSettle()
	assert.Len(t, h.e.Added(), 15)
	assert.Equal(t, 0, h.b.Stats()["pending"])
}

func TestAdmissionPreservesFIFOOrder(t *testing.T) {
	h := newHarness(t, 10)

	ctxs := make([]*fake.Context, 5)
	for i := range ctxs {
		ctxs[i] = &fake.Context{}
		require.NoError(t, h.b.Enqueue(ctxs[i]))
	}
	h.tickAndSettle()

	added := h.e.Added()
	require.Len(t, added, 5)
	for i, tr := range added {
		assert.Same(t, ctxs[i], tr.Owner(), "admission order must follow submission order")
	}
}

func TestOneCompletionPerTick(t *testing.T) {
	h := newHarness(t, 10)

	const n = 4
	ctxs := make([]*fake.Context, n)
	for i := range ctxs {
		ctxs[i] = &fake.Context{}
		require.NoError(t, h.b.Enqueue(ctxs[i]))
	}
	h.tickAndSettle()

	for _, tr := range h.e.Added() {
		h.e.Complete(tr, nil)
	}
	h.r.FireTimer() // progress step moves finished transfers to the completed queue
	h.r.Sync()
	require.Equal(t, n, h.b.Stats()["completed"])

	total := func() int {
		sum := 0
		for _, c := range ctxs {
			sum += len(c.Completions())
		}
		return sum
	}
	for k := 1; k <= n; k++ {
		h.tickAndSettle()
		assert.Equal(t, k, total(), "tick %d must deliver exactly one completion", k)
	}
	h.tickAndSettle()
	assert.Equal(t, n, total(), "no callbacks left after all have been drained")
}

func TestCompletionDeliveredInFinishOrderWithError(t *testing.T) {
	h := newHarness(t, 10)

	first := &fake.Context{}
	second := &fake.Context{}
	require.NoError(t, h.b.Enqueue(first))
	require.NoError(t, h.b.Enqueue(second))
	h.tickAndSettle()

	added := h.e.Added()
	require.Len(t, added, 2)

	// Finish in reverse submission order; drain order must follow finish
	// order, not submission order.
	failure := errors.New("connection refused")
	h.e.Complete(added[1], failure)
	h.e.Complete(added[0], nil)
	h.r.FireTimer()
	h.r.Sync()

	h.tickAndSettle()
	require.Len(t, second.Completions(), 1)
	assert.ErrorIs(t, second.Completions()[0], failure)
	assert.Empty(t, first.Completions())

	h.tickAndSettle()
	require.Len(t, first.Completions(), 1)
	assert.NoError(t, first.Completions()[0])

	removed := h.e.Removed()
	assert.Len(t, removed, 2, "every finished transfer is released exactly once")
}

func TestAdmissionFailureIsSilentlyDropped(t *testing.T) {
	h := newHarness(t, 10)

	bad := &fake.Context{InitErr: errors.New("resolve failed")}
	good := &fake.Context{}
	require.NoError(t, h.b.Enqueue(bad))
	require.NoError(t, h.b.Enqueue(good))

	h.tickAndSettle()
	assert.Len(t, h.e.Added(), 1, "failed init must not reach the engine")
	assert.Equal(t, 0, h.b.Stats()["pending"], "no queue residue")

	// The failed context never completes; the good one proceeds normally.
	h.e.Complete(h.e.Added()[0], nil)
	h.r.FireTimer()
	h.r.Sync()
	h.tickAndSettle()
	h.tickAndSettle()
	assert.Empty(t, bad.Completions())
	assert.Len(t, good.Completions(), 1)
}

func TestEngineRejectionIsSilentlyDropped(t *testing.T) {
	h := newHarness(t, 10)
	h.e.AddErr = errors.New("engine full")

	rc := &fake.Context{}
	require.NoError(t, h.b.Enqueue(rc))
	h.tickAndSettle()

	assert.Equal(t, 0, h.b.Stats()["pending"])
	h.tickAndSettle()
	assert.Empty(t, rc.Completions())
}

func TestPerformSignalsCoalesceAcrossTicks(t *testing.T) {
	h := newHarness(t, 10)

	rc := &fake.Context{}
	require.NoError(t, h.b.Enqueue(rc))

	// Repeated ticks while the queue is non-empty are cheap re-signals;
	// the context is admitted exactly once.
	h.b.Tick()
	h.b.Tick()
	h.b.Tick()
	h.r.Sync()
	assert.Len(t, h.e.Added(), 1)
	assert.Equal(t, 1, rc.Inited())
}

func TestEnqueueDoesNotBlockDuringAdmission(t *testing.T) {
	h := newHarness(t, 10)

	started := make(chan struct{}, 1)
	slow := &fake.Context{InitHook: func() {
		started <- struct{}{}
		time.Sleep(200 * time.Millisecond)
	}}
	require.NoError(t, h.b.Enqueue(slow))
	h.b.Tick()
	<-started // admission is now stalled inside InitTransfer

	begin := time.Now()
	require.NoError(t, h.b.Enqueue(&fake.Context{}))
	elapsed := time.Since(begin)
	h.r.Sync()

	assert.Less(t, elapsed, 100*time.Millisecond,
		"submission must not wait on an in-flight admission's initialization")
	assert.Len(t, h.e.Added(), 1)
}

func TestBindingRegistersAndRemovesPollContexts(t *testing.T) {
	h := newHarness(t, 10)

	h.e.Interest(42, api.IORead, false)
	assert.Equal(t, map[int]api.IOFlags{42: api.IORead}, h.r.Sockets())

	h.e.Interest(42, api.IORead|api.IOWrite, false)
	assert.Equal(t, api.IORead|api.IOWrite, h.r.Sockets()[42])

	h.e.Interest(42, 0, true)
	assert.Empty(t, h.r.Sockets())

	// A second removal notice for the same descriptor is a no-op.
	h.e.Interest(42, 0, true)
	assert.Empty(t, h.r.Sockets())
}

func TestBindingArmsAndDisarmsTimer(t *testing.T) {
	h := newHarness(t, 10)

	h.e.ChangeTimeout(50 * time.Millisecond)
	armed, d := h.r.TimerState()
	assert.True(t, armed)
	assert.Equal(t, 50*time.Millisecond, d)

	// Zero means "as soon as possible", which still arms.
	h.e.ChangeTimeout(0)
	armed, d = h.r.TimerState()
	assert.True(t, armed)
	assert.Equal(t, time.Duration(0), d)

	h.e.ChangeTimeout(-1)
	armed, _ = h.r.TimerState()
	assert.False(t, armed)
}

func TestFailedSocketRegistrationIsNotRetained(t *testing.T) {
	h := newHarness(t, 10)

	h.r.AddSocketErr = errors.New("no such device")
	h.e.Interest(7, api.IORead, false)
	assert.Empty(t, h.r.Sockets())

	// Once registration can succeed the binding must issue a fresh add,
	// not modify a descriptor the reactor never saw.
	h.r.AddSocketErr = nil
	h.e.Interest(7, api.IORead, false)
	assert.Equal(t, api.IORead, h.r.Sockets()[7])
}

func TestDeferRunsOnHostTick(t *testing.T) {
	h := newHarness(t, 10)

	ran := 0
	h.b.Defer(func() { ran++ })
	h.b.Defer(func() { ran++ })
	assert.Equal(t, 0, ran, "deferred actions wait for a tick")

	h.b.Tick()
	assert.Equal(t, 2, ran)
}

func TestDeferredActionDeferringAgainRunsNextTick(t *testing.T) {
	h := newHarness(t, 10)

	var order []string
	h.b.Defer(func() {
		order = append(order, "first")
		h.b.Defer(func() { order = append(order, "second") })
	})

	h.b.Tick()
	assert.Equal(t, []string{"first"}, order)
	h.b.Tick()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestShutdownAbandonsInFlightWork(t *testing.T) {
	h := newHarness(t, 10)

	rc := &fake.Context{}
	require.NoError(t, h.b.Enqueue(rc))
	h.tickAndSettle()
	require.Len(t, h.e.Added(), 1)

	require.NoError(t, h.b.Shutdown())
	assert.True(t, h.b.TornDown())
	assert.True(t, h.e.Closed())
	assert.True(t, h.r.Closed())
	assert.Empty(t, rc.Completions(), "in-flight work is abandoned, not completed")

	// Idempotent.
	require.NoError(t, h.b.Shutdown())
}

func TestPostTeardownCallsAreNoOps(t *testing.T) {
	h := newHarness(t, 10)

	ran := false
	require.NoError(t, h.b.Shutdown())

	assert.ErrorIs(t, h.b.Enqueue(&fake.Context{}), api.ErrBridgeDown)
	h.b.Defer(func() { ran = true })
	h.b.Tick()
	assert.False(t, ran, "actions deferred after teardown are dropped")
}
