//go:build !linux
// +build !linux

// File: protocol/conn_stub.go
// Author: momentics <momentics@gmail.com>

package protocol

import "github.com/momentics/hioload-requests/api"

func setBlocking(fd int) error { return api.ErrNotSupported }

func closeFd(fd int) {}
