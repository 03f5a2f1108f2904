//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp - Linux listening socket over raw descriptors.

package tcp

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// DefaultBacklog is the listen queue length used when none is configured.
const DefaultBacklog = 1024

// ListenConfig holds configuration for the TCP listener.
type ListenConfig struct {
	Address string // IP to bind; empty means all IPv4 interfaces
	Port    int    // 0 picks an ephemeral port
	Backlog int    // listen queue length
}

// Listener is a non-blocking listening socket implementing api.Listener.
type Listener struct {
	fd        int
	addr      netip.AddrPort
	closeOnce sync.Once
}

var _ api.Listener = (*Listener)(nil)

// Listen opens a non-blocking, close-on-exec listening socket with
// SO_REUSEADDR set.
func Listen(cfg ListenConfig) (*Listener, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("tcp listen: port %d: %w", cfg.Port, api.ErrInvalidConfig)
	}
	ip := netip.IPv4Unspecified()
	if cfg.Address != "" {
		parsed, err := netip.ParseAddr(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("tcp listen: address %q: %w", cfg.Address, api.ErrInvalidConfig)
		}
		ip = parsed.Unmap()
	}
	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	family := unix.AF_INET
	if ip.Is6() {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("tcp socket: %w: %w", api.ErrResourceInit, err)
	}
	fail := func(op string, err error) (*Listener, error) {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("tcp %s %s: %w: %w", op, netip.AddrPortFrom(ip, uint16(cfg.Port)), api.ErrResourceInit, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	if err := unix.Bind(fd, toSockaddr(netip.AddrPortFrom(ip, uint16(cfg.Port)))); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	return &Listener{fd: fd, addr: fromSockaddr(sa)}, nil
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address.
func (l *Listener) Addr() netip.AddrPort { return l.addr }

// Accept takes one pending connection. The returned descriptor is
// non-blocking and close-on-exec.
func (l *Listener) Accept() (int, netip.AddrPort, error) {
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			return nfd, fromSockaddr(sa), nil
		case unix.EINTR:
			continue
		case unix.EAGAIN, unix.ECONNABORTED:
			return -1, netip.AddrPort{}, api.ErrWouldBlock
		default:
			return -1, netip.AddrPort{}, fmt.Errorf("accept4: %w", err)
		}
	}
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() { err = unix.Close(l.fd) })
	return err
}

// CloseFD closes an accepted descriptor.
func CloseFD(fd int) error {
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close fd %d: %w", fd, err)
	}
	return nil
}

func toSockaddr(ap netip.AddrPort) unix.Sockaddr {
	if ap.Addr().Is4() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: ap.Addr().As4()}
	}
	return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: ap.Addr().As16()}
}

func fromSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(v.Addr), uint16(v.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(v.Addr).Unmap(), uint16(v.Port))
	default:
		return netip.AddrPort{}
	}
}
