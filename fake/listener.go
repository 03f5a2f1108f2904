// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake listening socket and descriptor closer.

package fake

import (
	"net/netip"
	"slices"
	"sync"

	"github.com/momentics/hioload-httpd/api"
)

type pendingConn struct {
	fd   int
	peer netip.AddrPort
	err  error
}

// Listener is a fake implementation of api.Listener backed by a queue of
// pending connections.
type Listener struct {
	mu      sync.Mutex
	fd      int
	addr    netip.AddrPort
	pending []pendingConn
	closed  bool
}

var _ api.Listener = (*Listener)(nil)

// NewListener creates a fake listener with the given descriptor number.
func NewListener(fd int) *Listener {
	return &Listener{
		fd:   fd,
		addr: netip.AddrPortFrom(netip.IPv4Unspecified(), 8080),
	}
}

// Push queues a connection for the next Accept.
func (l *Listener) Push(fd int, peer netip.AddrPort) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, pendingConn{fd: fd, peer: peer})
}

// PushError queues a failing accept.
func (l *Listener) PushError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, pendingConn{fd: -1, err: err})
}

// Fd implements api.Listener.Fd.
func (l *Listener) Fd() int { return l.fd }

// Addr implements api.Listener.Addr.
func (l *Listener) Addr() netip.AddrPort { return l.addr }

// Accept implements api.Listener.Accept.
func (l *Listener) Accept() (int, netip.AddrPort, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return -1, netip.AddrPort{}, api.ErrClosed
	}
	if len(l.pending) == 0 {
		return -1, netip.AddrPort{}, api.ErrWouldBlock
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c.fd, c.peer, c.err
}

// Close implements api.Listener.Close.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closer records closed descriptors in place of the OS close call.
type Closer struct {
	mu     sync.Mutex
	closed []int
}

// Close records fd.
func (c *Closer) Close(fd int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, fd)
	return nil
}

// Closed returns every recorded descriptor, in order.
func (c *Closer) Closed() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.closed)
}

// Count returns how many times fd was closed.
func (c *Closer) Count(fd int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.closed {
		if v == fd {
			n++
		}
	}
	return n
}
