// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the event loop backing the bridge's background
// thread: a non-blocking multiplexer over socket readiness, one shared
// one-shot deadline timer, and two coalescing inter-thread wake signals
// ("perform requests" and "stop"). The Linux implementation is built on
// epoll, eventfd and timerfd; other platforms return api.ErrNotSupported.
package reactor
