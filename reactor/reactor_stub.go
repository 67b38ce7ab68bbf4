//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-requests/api"
)

// New returns an error for platforms without a reactor backend.
func New(log zerolog.Logger) (api.Reactor, error) {
	return nil, api.ErrNotSupported
}
