//go:build !linux
// +build !linux

// File: engine/sock_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub socket layer for unsupported platforms.

package engine

import (
	"net"

	"github.com/momentics/hioload-requests/api"
)

func sockConnect(addr *net.TCPAddr) (int, bool, error) { return -1, false, api.ErrNotSupported }
func sockFinishConnect(fd int) error                   { return api.ErrNotSupported }
func sockWrite(fd int, p []byte) (int, error)          { return 0, api.ErrNotSupported }
func sockRead(fd int, p []byte) (int, error)           { return 0, api.ErrNotSupported }
func sockClose(fd int) error                           { return nil }
