// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api defines the contracts between the components of
// hioload-requests: the event reactor, the multi-transfer engine, and the
// request contexts that travel between the host thread and the reactor
// thread. Implementations live in the reactor, engine, request, protocol and
// fake packages; the bridge package wires them together.
package api
