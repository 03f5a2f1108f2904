// File: api/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contracts between the dispatch core and the per-connection protocol
// collaborator.

package api

import "net/netip"

// Conn is the per-connection protocol state machine driven by the core.
//
// A Conn is owned by exactly one goroutine at a time: the reactor between
// accept and dispatch, or the worker running Process. The one-shot
// registration of its descriptor is what enforces this.
type Conn interface {
	// Init resets the connection for a freshly accepted descriptor.
	Init(fd int, peer netip.AddrPort, ctl Controller)

	// Read drains all available input without blocking. False means
	// error or EOF and the core must release the connection.
	Read() bool

	// Write flushes pending output without blocking. False means the
	// connection is finished or broken and the core must release it.
	Write() bool

	// Process runs on a worker goroutine. It must not block on I/O and must
	// re-arm or release its descriptor through the Controller.
	Process()

	// Close drops protocol state when the slot is retired.
	Close()
}

// Controller is the dispatch context handed to every connection on Init.
type Controller interface {
	// Rearm re-enables one-shot notification for fd with a new interest.
	Rearm(fd int, in Interest) error

	// Release retires the connection on fd. Safe from any owner goroutine
	// and idempotent.
	Release(fd int)

	// Live returns the number of connections currently held.
	Live() int
}

// Listener is a non-blocking listening socket.
type Listener interface {
	// Fd returns the listening descriptor.
	Fd() int

	// Accept takes one pending connection. It returns ErrWouldBlock when
	// nothing is pending.
	Accept() (fd int, peer netip.AddrPort, err error)

	// Addr returns the bound address.
	Addr() netip.AddrPort

	// Close closes the listening socket.
	Close() error
}
