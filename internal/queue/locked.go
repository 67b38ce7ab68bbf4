// File: internal/queue/locked.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread-safe FIFO with caller-controlled lock scope. The two instances of
// this queue (pending, completed) are the only mutable state shared between
// the host thread and the reactor thread.

package queue

import (
	"sync"
	"sync/atomic"

	ring "github.com/eapache/queue"
)

// Locked is a FIFO of T guarded by an explicit mutex. Callers take the lock
// themselves, enabling batched "lock, pop-N, unlock" patterns without
// internal retries.
//
// Empty and Len are point-in-time snapshots safe to read without the lock;
// they answer "should I act", after which the caller must still take the
// lock before pushing or popping.
type Locked[T any] struct {
	mu     sync.Mutex
	buf    *ring.Queue
	length atomic.Int64
}

// NewLocked returns an empty queue.
func NewLocked[T any]() *Locked[T] {
	return &Locked[T]{buf: ring.New()}
}

// Lock acquires the queue mutex.
func (q *Locked[T]) Lock() { q.mu.Lock() }

// Unlock releases the queue mutex.
func (q *Locked[T]) Unlock() { q.mu.Unlock() }

// PushLocked appends v. The caller must hold the lock.
func (q *Locked[T]) PushLocked(v T) {
	q.buf.Add(v)
	q.length.Add(1)
}

// PopLocked removes and returns the oldest element. The caller must hold the
// lock and must have checked Empty under the same lock; popping an empty
// queue is a contract violation and panics.
func (q *Locked[T]) PopLocked() T {
	if q.buf.Length() == 0 {
		panic("queue: pop on empty queue")
	}
	v := q.buf.Remove().(T)
	q.length.Add(-1)
	return v
}

// Push appends v under the lock. Convenience for single-element producers.
func (q *Locked[T]) Push(v T) {
	q.mu.Lock()
	q.PushLocked(v)
	q.mu.Unlock()
}

// Empty reports whether the queue held no elements at the time of the call.
func (q *Locked[T]) Empty() bool { return q.length.Load() == 0 }

// Len returns the number of queued elements at the time of the call.
func (q *Locked[T]) Len() int { return int(q.length.Load()) }
