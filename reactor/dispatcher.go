// File: reactor/dispatcher.go
// Author: momentics <momentics@gmail.com>
//
// Event-driven dispatch loop: accepts connections, drains readable sockets
// and routes them into the worker pool, flushes writable sockets inline.

package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"runtime"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/logger"
	"github.com/momentics/hioload-httpd/internal/session"
)

// Registry is the connection table the dispatcher fills and drains.
type Registry[C api.Conn] interface {
	Open(fd int, peer netip.AddrPort) (C, error)
	Get(fd int) (C, bool)
	Info(fd int) (session.Info, bool)
	Release(fd int)
	Discard(fd int)
	Live() int
}

// Pool accepts readable connections for processing. Append never blocks and
// reports false when the pool is saturated or stopped.
type Pool[C api.Conn] interface {
	Append(conn C) bool
}

// Dispatcher runs the single reactor loop of the process.
type Dispatcher[C api.Conn] struct {
	poller   api.Poller
	listener api.Listener
	registry Registry[C]
	pool     Pool[C]
	events   []api.Event
	opts     options
	log      *slog.Logger
	running  atomic.Bool
}

// NewDispatcher wires the loop and registers the listening socket.
func NewDispatcher[C api.Conn](poller api.Poller, ln api.Listener, reg Registry[C], pool Pool[C], opts ...Option) (*Dispatcher[C], error) {
	if poller == nil || ln == nil || reg == nil || pool == nil {
		return nil, fmt.Errorf("dispatcher: poller, listener, registry and pool are required: %w", api.ErrInvalidConfig)
	}
	o := options{maxEvents: DefaultMaxEvents}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEvents <= 0 || o.maxConnections < 0 {
		return nil, fmt.Errorf("dispatcher: max_events=%d max_connections=%d: %w",
			o.maxEvents, o.maxConnections, api.ErrInvalidConfig)
	}
	if o.log == nil {
		o.log = logger.Default()
	}
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}
	if err := poller.AddListener(ln.Fd()); err != nil {
		return nil, fmt.Errorf("dispatcher: %w: %w", api.ErrResourceInit, err)
	}
	return &Dispatcher[C]{
		poller:   poller,
		listener: ln,
		registry: reg,
		pool:     pool,
		events:   make([]api.Event, o.maxEvents),
		opts:     o,
		log:      o.log.With("component", "reactor"),
	}, nil
}

// Run blocks on the poller and dispatches events until ctx is cancelled,
// which returns nil, or the wait fails, which returns an error wrapping
// api.ErrMultiplexWait. The calling goroutine is locked to its OS thread.
func (d *Dispatcher[C]) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("dispatcher: already running")
	}
	defer d.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	stop := context.AfterFunc(ctx, func() {
		if err := d.poller.Wakeup(); err != nil {
			d.log.Warn("wakeup failed", "error", err)
		}
	})
	defer stop()

	d.log.Info("reactor started", "listen", d.listener.Addr(), "max_events", len(d.events))
	for {
		if ctx.Err() != nil {
			d.log.Info("reactor stopped")
			return nil
		}
		n, err := d.poller.Wait(d.events, -1)
		if err != nil {
			if errors.Is(err, api.ErrInterrupted) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			d.log.Error("readiness wait failed", "error", err)
			return fmt.Errorf("dispatcher: %w: %w", api.ErrMultiplexWait, err)
		}
		for i := 0; i < n; i++ {
			d.dispatch(d.events[i])
		}
	}
}

func (d *Dispatcher[C]) dispatch(ev api.Event) {
	if ev.Fd == d.listener.Fd() {
		d.opts.metrics.EventDispatched("accept")
		d.accept()
		return
	}

	conn, ok := d.registry.Get(ev.Fd)
	if !ok {
		d.log.Debug("event for unknown descriptor", "fd", ev.Fd)
		return
	}

	switch {
	case ev.Broken():
		d.opts.metrics.EventDispatched("hangup")
		d.registry.Release(ev.Fd)
	case ev.Readable():
		d.opts.metrics.EventDispatched("read")
		if !conn.Read() {
			d.registry.Release(ev.Fd)
			return
		}
		// The pool owns conn from here on.
		if !d.pool.Append(conn) {
			info, _ := d.registry.Info(ev.Fd)
			d.log.Warn("connection rejected", "fd", ev.Fd, "session", info.ID, "peer", info.Peer, "error", api.ErrQueueFull)
			d.opts.metrics.ConnectionRejected("queue_full")
			d.registry.Release(ev.Fd)
		}
	case ev.Writable():
		d.opts.metrics.EventDispatched("write")
		if !conn.Write() {
			d.registry.Release(ev.Fd)
		}
	}
}

func (d *Dispatcher[C]) accept() {
	fd, peer, err := d.listener.Accept()
	if err != nil {
		if !errors.Is(err, api.ErrWouldBlock) {
			d.log.Warn("accept failed", "error", fmt.Errorf("%w: %w", api.ErrAccept, err))
		}
		return
	}

	if d.opts.limiter != nil && !d.opts.limiter.Allow() {
		d.reject(fd, peer, "rate")
		return
	}
	if ceiling := d.opts.maxConnections; ceiling > 0 && d.registry.Live() >= ceiling {
		d.reject(fd, peer, "ceiling")
		return
	}
	if _, err := d.registry.Open(fd, peer); err != nil {
		switch {
		case errors.Is(err, session.ErrFDOutOfRange):
			d.reject(fd, peer, "fd_range")
		case errors.Is(err, session.ErrSlotBusy):
			d.reject(fd, peer, "slot_busy")
		default:
			// Open already released and closed the descriptor.
			d.log.Warn("register failed", "fd", fd, "peer", peer, "error", err)
			d.opts.metrics.ConnectionRejected("register")
		}
		return
	}
	d.opts.metrics.ConnectionAccepted()
}

func (d *Dispatcher[C]) reject(fd int, peer netip.AddrPort, reason string) {
	d.registry.Discard(fd)
	d.opts.metrics.ConnectionRejected(reason)
	d.log.Debug("connection refused", "fd", fd, "peer", peer, "reason", reason)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionAccepted()       {}
func (noopMetrics) ConnectionRejected(string) {}
func (noopMetrics) ConnectionClosed()         {}
func (noopMetrics) SetActiveConnections(int)  {}
func (noopMetrics) EventDispatched(string)    {}
