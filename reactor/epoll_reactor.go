//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

const clientFlags = unix.EPOLLET | unix.EPOLLONESHOT | unix.EPOLLRDHUP

// epollPoller implements api.Poller using Linux epoll plus an eventfd for
// cross-goroutine wakeups.
type epollPoller struct {
	epfd    int // epoll file descriptor
	wakefd  int // eventfd registered level-triggered for read
	raw     []unix.EpollEvent
	closeMu sync.Once
}

// NewPoller creates the process multiplexing context. maxEvents bounds the
// number of events returned by one Wait.
func NewPoller(maxEvents int) (api.Poller, error) {
	if maxEvents <= 0 {
		return nil, fmt.Errorf("epoll: max events %d: %w", maxEvents, api.ErrInvalidConfig)
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w: %w", api.ErrResourceInit, err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w: %w", api.ErrResourceInit, err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w: %w", api.ErrResourceInit, err)
	}
	return &epollPoller{
		epfd:   epfd,
		wakefd: wakefd,
		raw:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

func interestBits(in api.Interest) uint32 {
	var bits uint32
	if in&api.InterestRead != 0 {
		bits |= unix.EPOLLIN
	}
	if in&api.InterestWrite != 0 {
		bits |= unix.EPOLLOUT
	}
	return bits
}

// AddListener registers the listening socket level-triggered and persistent.
func (p *epollPoller) AddListener(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add listener %d: %w", fd, err)
	}
	return nil
}

// Add registers a client descriptor edge-triggered and one-shot.
func (p *epollPoller) Add(fd int, in api.Interest) error {
	ev := unix.EpollEvent{Events: clientFlags | interestBits(in), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add %d: %w", fd, err)
	}
	return nil
}

// Modify re-arms a client descriptor.
func (p *epollPoller) Modify(fd int, in api.Interest) error {
	ev := unix.EpollEvent{Events: clientFlags | interestBits(in), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod %d: %w", fd, err)
	}
	return nil
}

// Remove deregisters a descriptor.
func (p *epollPoller) Remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del %d: %w", fd, err)
	}
	return nil
}

// Wait blocks for readiness. Only one goroutine may call Wait.
func (p *epollPoller) Wait(events []api.Event, timeoutMs int) (int, error) {
	limit := min(len(events), len(p.raw))
	if limit == 0 {
		return 0, nil
	}
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(p.epfd, p.raw[:limit], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, api.ErrInterrupted
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	out := 0
	for i := 0; i < n; i++ {
		raw := p.raw[i]
		fd := int(raw.Fd)
		if fd == p.wakefd {
			p.drainWakeup()
			continue
		}
		var mask api.EventMask
		if raw.Events&unix.EPOLLIN != 0 {
			mask |= api.EventRead
		}
		if raw.Events&unix.EPOLLOUT != 0 {
			mask |= api.EventWrite
		}
		if raw.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			mask |= api.EventHangup
		}
		if raw.Events&unix.EPOLLERR != 0 {
			mask |= api.EventError
		}
		events[out] = api.Event{Fd: fd, Mask: mask}
		out++
	}
	return out, nil
}

func (p *epollPoller) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// Wakeup makes a blocked Wait return.
func (p *epollPoller) Wakeup() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(p.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close releases the epoll and eventfd descriptors.
func (p *epollPoller) Close() error {
	var err error
	p.closeMu.Do(func() {
		_ = unix.Close(p.wakefd)
		err = unix.Close(p.epfd)
	})
	return err
}
