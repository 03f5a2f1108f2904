//go:build !linux
// +build !linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp - stub for platforms without the raw socket path.

package tcp

import (
	"fmt"
	"net/netip"

	"github.com/momentics/hioload-httpd/api"
)

// DefaultBacklog is the listen queue length used when none is configured.
const DefaultBacklog = 1024

// ListenConfig holds configuration for the TCP listener.
type ListenConfig struct {
	Address string
	Port    int
	Backlog int
}

// Listener is unavailable on this platform.
type Listener struct{}

// Listen returns api.ErrUnsupported.
func Listen(ListenConfig) (*Listener, error) {
	return nil, fmt.Errorf("tcp listen: %w", api.ErrUnsupported)
}

func (l *Listener) Fd() int                              { return -1 }
func (l *Listener) Addr() netip.AddrPort                 { return netip.AddrPort{} }
func (l *Listener) Accept() (int, netip.AddrPort, error) { return -1, netip.AddrPort{}, api.ErrUnsupported }
func (l *Listener) Close() error                         { return nil }

// CloseFD returns api.ErrUnsupported.
func CloseFD(int) error { return api.ErrUnsupported }
