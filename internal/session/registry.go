// File: internal/session/registry.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-capacity connection table indexed by file descriptor.

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/logger"
)

// ErrFDOutOfRange reports a descriptor that does not fit the table.
var ErrFDOutOfRange = errors.New("descriptor outside registry")

// ErrSlotBusy reports an Open on a slot that was never released.
var ErrSlotBusy = errors.New("registry slot already active")

// Config wires a Registry to the rest of the process.
type Config[C api.Conn] struct {
	// MaxFD is the table size; descriptors >= MaxFD are rejected.
	MaxFD int
	// Poller is the process multiplexing context.
	Poller api.Poller
	// New creates the connection value for a slot on first use.
	New func() C
	// CloseFD closes an OS descriptor.
	CloseFD func(fd int) error
	Logger  *slog.Logger
	Metrics api.ReactorMetrics
}

// Registry maps descriptors to connection state and is the api.Controller
// handed to every connection. Slots carry no lock: a descriptor armed
// one-shot is owned by exactly one goroutine at a time.
type Registry[C api.Conn] struct {
	slots   []slot[C]
	live    atomic.Int32
	poller  api.Poller
	newConn func() C
	closeFD func(fd int) error
	log     *slog.Logger
	metrics api.ReactorMetrics
}

var _ api.Controller = (*Registry[api.Conn])(nil)

// New builds a registry with cfg.MaxFD slots.
func New[C api.Conn](cfg Config[C]) (*Registry[C], error) {
	if cfg.MaxFD <= 0 {
		return nil, fmt.Errorf("registry: max_fd=%d: %w", cfg.MaxFD, api.ErrInvalidConfig)
	}
	if cfg.Poller == nil || cfg.New == nil || cfg.CloseFD == nil {
		return nil, fmt.Errorf("registry: poller, constructor and closer are required: %w", api.ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	return &Registry[C]{
		slots:   make([]slot[C], cfg.MaxFD),
		poller:  cfg.Poller,
		newConn: cfg.New,
		closeFD: cfg.CloseFD,
		log:     cfg.Logger.With("component", "registry"),
		metrics: cfg.Metrics,
	}, nil
}

// Open initializes the slot for a freshly accepted descriptor and arms it
// one-shot for read. If arming fails the slot is released again. The caller
// still owns fd when ErrFDOutOfRange or ErrSlotBusy is returned.
func (r *Registry[C]) Open(fd int, peer netip.AddrPort) (C, error) {
	var zero C
	if fd < 0 || fd >= len(r.slots) {
		return zero, fmt.Errorf("registry: fd %d of %d: %w", fd, len(r.slots), ErrFDOutOfRange)
	}
	s := &r.slots[fd]
	if !s.state.CompareAndSwap(slotFree, slotOpening) {
		return zero, fmt.Errorf("registry: fd %d: %w", fd, ErrSlotBusy)
	}
	if !s.created {
		s.conn = r.newConn()
		s.created = true
	}
	s.id = uuid.New()
	s.peer = peer
	s.conn.Init(fd, peer, r)
	n := r.live.Add(1)
	r.metrics.SetActiveConnections(int(n))
	s.state.Store(slotOpen)

	if err := r.poller.Add(fd, api.InterestRead); err != nil {
		r.Release(fd)
		return zero, fmt.Errorf("registry: arm fd %d: %w", fd, err)
	}
	r.log.Debug("connection opened", "fd", fd, "session", s.id, "peer", peer)
	return s.conn, nil
}

// Get returns the connection on fd if its slot is active.
func (r *Registry[C]) Get(fd int) (C, bool) {
	var zero C
	if fd < 0 || fd >= len(r.slots) {
		return zero, false
	}
	s := &r.slots[fd]
	if !s.open() {
		return zero, false
	}
	s.handoff.Load()
	return s.conn, true
}

// Info returns the session identity of an active slot. Only the current
// owner of fd may call it.
func (r *Registry[C]) Info(fd int) (Info, bool) {
	if fd < 0 || fd >= len(r.slots) || !r.slots[fd].open() {
		return Info{}, false
	}
	s := &r.slots[fd]
	return Info{Fd: fd, ID: s.id, Peer: s.peer}, true
}

// Rearm implements api.Controller. The caller gives up ownership of the
// connection; whoever receives the next event for fd takes it via Get.
func (r *Registry[C]) Rearm(fd int, in api.Interest) error {
	if fd >= 0 && fd < len(r.slots) {
		r.slots[fd].handoff.Add(1)
	}
	if err := r.poller.Modify(fd, in); err != nil {
		return fmt.Errorf("rearm fd %d for %s: %w", fd, in, err)
	}
	return nil
}

// Release implements api.Controller. It retires the connection: protocol
// cleanup, deregistration, descriptor close and live count decrement. Only
// the first call for an open slot has effect.
func (r *Registry[C]) Release(fd int) {
	r.release(fd)
}

func (r *Registry[C]) release(fd int) bool {
	if fd < 0 || fd >= len(r.slots) {
		return false
	}
	s := &r.slots[fd]
	if !s.state.CompareAndSwap(slotOpen, slotClosing) {
		return false
	}
	id := s.id
	s.conn.Close()
	if err := r.poller.Remove(fd); err != nil {
		r.log.Debug("deregister failed", "fd", fd, "error", err)
	}
	n := r.live.Add(-1)
	r.metrics.ConnectionClosed()
	r.metrics.SetActiveConnections(int(n))
	// free before close: accept may hand out fd again right after closeFD
	s.state.Store(slotFree)
	if err := r.closeFD(fd); err != nil {
		r.log.Debug("close failed", "fd", fd, "error", err)
	}
	r.log.Debug("connection released", "fd", fd, "session", id)
	return true
}

// Discard closes a descriptor that was never opened in the registry.
func (r *Registry[C]) Discard(fd int) {
	if err := r.closeFD(fd); err != nil {
		r.log.Debug("close failed", "fd", fd, "error", err)
	}
}

// Live implements api.Controller.
func (r *Registry[C]) Live() int {
	return int(r.live.Load())
}

// Cap returns the number of slots.
func (r *Registry[C]) Cap() int {
	return len(r.slots)
}

// CloseAll releases every active slot. Call only after the reactor and the
// worker pool have stopped, when no other goroutine owns a descriptor.
func (r *Registry[C]) CloseAll() int {
	n := 0
	for fd := range r.slots {
		if r.release(fd) {
			n++
		}
	}
	return n
}

type noopMetrics struct{}

func (noopMetrics) ConnectionAccepted()       {}
func (noopMetrics) ConnectionRejected(string) {}
func (noopMetrics) ConnectionClosed()         {}
func (noopMetrics) SetActiveConnections(int)  {}
func (noopMetrics) EventDispatched(string)    {}
