//go:build linux
// +build linux

// File: protocol/conn_linux.go
// Author: momentics <momentics@gmail.com>

package protocol

import "golang.org/x/sys/unix"

func setBlocking(fd int) error {
	return unix.SetNonblock(fd, false)
}

func closeFd(fd int) {
	_ = unix.Close(fd)
}
