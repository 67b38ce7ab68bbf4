//go:build linux
// +build linux

// File: engine/sock_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking socket syscall layer for Linux. The rest of the engine is
// platform-neutral; everything that touches a descriptor lives here.

package engine

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// sockConnect opens a non-blocking TCP socket and starts connecting.
// inProgress reports whether the connect is still completing asynchronously.
func sockConnect(addr *net.TCPAddr) (fd int, inProgress bool, err error) {
	sa, family, err := tcpSockaddr(addr)
	if err != nil {
		return -1, false, err
	}
	fd, err = unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, false, fmt.Errorf("socket: %w", err)
	}
	switch err = unix.Connect(fd, sa); err {
	case nil:
		return fd, false, nil
	case unix.EINPROGRESS:
		return fd, true, nil
	default:
		unix.Close(fd)
		return -1, false, fmt.Errorf("connect %s: %w", addr, err)
	}
}

// sockFinishConnect checks the outcome of an asynchronous connect once the
// descriptor reported writability.
func sockFinishConnect(fd int) error {
	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("getsockopt SO_ERROR: %w", err)
	}
	if soerr != 0 {
		return fmt.Errorf("connect: %w", unix.Errno(soerr))
	}
	return nil
}

// sockWrite writes p, translating would-block conditions to errAgain.
func sockWrite(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	switch err {
	case nil:
		return n, nil
	case unix.EAGAIN, unix.EINTR:
		return 0, errAgain
	default:
		return 0, fmt.Errorf("write: %w", err)
	}
}

// sockRead reads into p, translating would-block conditions to errAgain.
// n == 0 with nil error means the peer closed the connection.
func sockRead(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	switch err {
	case nil:
		return n, nil
	case unix.EAGAIN, unix.EINTR:
		return 0, errAgain
	default:
		return 0, fmt.Errorf("read: %w", err)
	}
}

func sockClose(fd int) error {
	return unix.Close(fd)
}

func tcpSockaddr(addr *net.TCPAddr) (unix.Sockaddr, int, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	if ip6 := addr.IP.To16(); ip6 != nil {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], ip6)
		return sa, unix.AF_INET6, nil
	}
	return nil, 0, fmt.Errorf("unsupported address %q", addr.String())
}
