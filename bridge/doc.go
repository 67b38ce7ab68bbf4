// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package bridge is the concurrency core of hioload-requests: it moves
// request contexts from the synchronous host thread to the reactor thread
// and back through two locked queues, binds the transfer engine's socket and
// timer callbacks to the reactor, and enforces the bridge's ownership rule:
// every context is owned by exactly one of {host, pending queue, engine,
// completed queue} at any instant.
//
// The host drives the bridge with three calls: Enqueue to submit work, Tick
// once per cooperative tick to signal the reactor and drain one completion,
// and Shutdown to stop the reactor thread and tear everything down.
package bridge
