//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7)-based reactor. Wake signals are eventfds (coalescing by
// construction: writes accumulate into one counter drained at dispatch), the
// deadline timer is a one-shot timerfd, and socket registrations are
// level-triggered to match the "poll until the engine makes progress"
// discipline of the transfer engine.

package reactor

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-requests/api"
)

const maxEvents = 128

type linuxReactor struct {
	epfd      int
	timerFd   int
	performFd int
	stopFd    int

	handlers api.ReactorHandlers
	log      zerolog.Logger
}

// New constructs the platform reactor for Linux.
func New(log zerolog.Logger) (api.Reactor, error) {
	r := &linuxReactor{epfd: -1, timerFd: -1, performFd: -1, stopFd: -1}
	r.log = log.With().Str("component", "reactor").Logger()

	var err error
	if r.epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	if r.timerFd, err = unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC); err != nil {
		r.Close()
		return nil, fmt.Errorf("timerfd create: %w", err)
	}
	if r.performFd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		r.Close()
		return nil, fmt.Errorf("eventfd create: %w", err)
	}
	if r.stopFd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		r.Close()
		return nil, fmt.Errorf("eventfd create: %w", err)
	}

	for _, fd := range []int{r.timerFd, r.performFd, r.stopFd} {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			r.Close()
			return nil, fmt.Errorf("epoll ctl add control fd: %w", err)
		}
	}
	return r, nil
}

func (r *linuxReactor) Bind(h api.ReactorHandlers) { r.handlers = h }

// Run dispatches events until the stop eventfd fires.
func (r *linuxReactor) Run() error {
	events := make([]unix.EpollEvent, maxEvents)
	for {
		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("epoll wait: %w", err)
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			switch fd {
			case r.stopFd:
				drainCounter(fd)
				r.log.Debug().Msg("stop signal received")
				return nil
			case r.performFd:
				drainCounter(fd)
				if r.handlers.OnPerform != nil {
					r.handlers.OnPerform()
				}
			case r.timerFd:
				drainCounter(fd)
				if r.handlers.OnTimer != nil {
					r.handlers.OnTimer()
				}
			default:
				if r.handlers.OnSocket != nil {
					r.handlers.OnSocket(fd, epollToFlags(ev.Events))
				}
			}
		}
	}
}

func (r *linuxReactor) AddSocket(fd int, flags api.IOFlags) error {
	ev := unix.EpollEvent{Events: flagsToEpoll(flags), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (r *linuxReactor) ModifySocket(fd int, flags api.IOFlags) error {
	ev := unix.EpollEvent{Events: flagsToEpoll(flags), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

func (r *linuxReactor) RemoveSocket(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// ArmTimer schedules a one-shot expiry after d. A zero timerfd value would
// disarm, so "fire now" is clamped to one nanosecond.
func (r *linuxReactor) ArmTimer(d time.Duration) error {
	if d <= 0 {
		d = time.Nanosecond
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	if err := unix.TimerfdSettime(r.timerFd, 0, &spec, nil); err != nil {
		return fmt.Errorf("timerfd settime: %w", err)
	}
	return nil
}

func (r *linuxReactor) DisarmTimer() error {
	var spec unix.ItimerSpec
	if err := unix.TimerfdSettime(r.timerFd, 0, &spec, nil); err != nil {
		return fmt.Errorf("timerfd disarm: %w", err)
	}
	return nil
}

func (r *linuxReactor) WakePerform() error { return signalEventfd(r.performFd) }

func (r *linuxReactor) Stop() error { return signalEventfd(r.stopFd) }

func (r *linuxReactor) Close() error {
	var first error
	for _, fd := range []int{r.epfd, r.timerFd, r.performFd, r.stopFd} {
		if fd >= 0 {
			if err := unix.Close(fd); err != nil && first == nil {
				first = err
			}
		}
	}
	r.epfd, r.timerFd, r.performFd, r.stopFd = -1, -1, -1, -1
	return first
}

func signalEventfd(fd int) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(fd, buf[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// drainCounter empties an eventfd or timerfd expiry counter so the
// level-triggered registration goes quiet until the next signal.
func drainCounter(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}

func flagsToEpoll(flags api.IOFlags) uint32 {
	var ev uint32
	if flags&api.IORead != 0 {
		ev |= unix.EPOLLIN
	}
	if flags&api.IOWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func epollToFlags(events uint32) api.IOFlags {
	var flags api.IOFlags
	if events&unix.EPOLLIN != 0 {
		flags |= api.IORead
	}
	if events&unix.EPOLLOUT != 0 {
		flags |= api.IOWrite
	}
	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		// Report both directions so the engine attempts IO and surfaces
		// the socket error through the normal read/write path.
		flags |= api.IOErr | api.IORead | api.IOWrite
	}
	return flags
}
