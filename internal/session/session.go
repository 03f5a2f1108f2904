// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-descriptor slot of the connection registry.

package session

import (
	"net/netip"
	"sync/atomic"

	"github.com/google/uuid"
)

// Slot states. Open moves free -> opening, fills the slot, then publishes
// it as open. Release moves open -> closing, retires the connection and
// frees the slot before the descriptor number can be reused.
const (
	slotFree int32 = iota
	slotOpening
	slotOpen
	slotClosing
)

// slot holds one connection value for the lifetime of the registry. The
// value is created on first use and reinitialized on every Open; it is never
// freed individually.
type slot[C any] struct {
	state   atomic.Int32
	created bool
	conn    C
	id      uuid.UUID
	peer    netip.AddrPort

	// handoff is bumped by every Rearm and read by Get. Ownership of the
	// connection moves between goroutines through epoll, which the memory
	// model does not see; this counter is the ordering edge.
	handoff atomic.Uint64
}

func (s *slot[C]) open() bool {
	return s.state.Load() == slotOpen
}

// Info describes an open session.
type Info struct {
	Fd   int
	ID   uuid.UUID
	Peer netip.AddrPort
}
