// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package engine implements the multi-transfer engine: many concurrent
// HTTP/1.1 transfers over non-blocking sockets, driven entirely by external
// progress-step calls (socket readiness or timeout) from the reactor thread.
//
// The engine owns no thread and performs no polling itself. It reports
// socket interest changes and timer deadline changes through the callbacks
// installed with Bind, and exposes finished transfers through a pull-based
// message queue, mirroring the classic multi-handle contract.
package engine
