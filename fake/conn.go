// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake connection and controller.

package fake

import (
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
)

// Conn is a fake implementation of api.Conn that counts every call.
type Conn struct {
	Inits     atomic.Int32
	Reads     atomic.Int32
	Writes    atomic.Int32
	Processes atomic.Int32
	Closes    atomic.Int32

	// ReadOK and WriteOK are the results of Read and Write.
	ReadOK  atomic.Bool
	WriteOK atomic.Bool

	mu      sync.Mutex
	fd      int
	peer    netip.AddrPort
	ctl     api.Controller
	process func(c *Conn)
}

var _ api.Conn = (*Conn)(nil)

// NewConn creates a fake connection whose Read and Write succeed.
func NewConn() *Conn {
	c := &Conn{fd: -1}
	c.ReadOK.Store(true)
	c.WriteOK.Store(true)
	return c
}

// OnProcess installs the body of Process.
func (c *Conn) OnProcess(fn func(c *Conn)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.process = fn
}

// Init implements api.Conn.Init.
func (c *Conn) Init(fd int, peer netip.AddrPort, ctl api.Controller) {
	c.mu.Lock()
	c.fd, c.peer, c.ctl = fd, peer, ctl
	c.mu.Unlock()
	c.Inits.Add(1)
}

// Read implements api.Conn.Read.
func (c *Conn) Read() bool {
	c.Reads.Add(1)
	return c.ReadOK.Load()
}

// Write implements api.Conn.Write.
func (c *Conn) Write() bool {
	c.Writes.Add(1)
	return c.WriteOK.Load()
}

// Process implements api.Conn.Process.
func (c *Conn) Process() {
	c.Processes.Add(1)
	c.mu.Lock()
	fn := c.process
	c.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

// Close implements api.Conn.Close.
func (c *Conn) Close() {
	c.Closes.Add(1)
}

// Fd returns the descriptor passed to the last Init.
func (c *Conn) Fd() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fd
}

// Peer returns the address passed to the last Init.
func (c *Conn) Peer() netip.AddrPort {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// Controller returns the controller passed to the last Init.
func (c *Conn) Controller() api.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctl
}

// Controller is a fake api.Controller that records calls.
type Controller struct {
	mu       sync.Mutex
	rearms   []api.Interest
	releases int
	live     int
	rearmErr error
}

var _ api.Controller = (*Controller)(nil)

// SetRearmError configures Rearm to fail with err.
func (c *Controller) SetRearmError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rearmErr = err
}

// Rearm implements api.Controller.Rearm.
func (c *Controller) Rearm(_ int, in api.Interest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rearmErr != nil {
		return c.rearmErr
	}
	c.rearms = append(c.rearms, in)
	return nil
}

// Release implements api.Controller.Release.
func (c *Controller) Release(int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
}

// Live implements api.Controller.Live.
func (c *Controller) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Rearms returns the interests passed to Rearm, in order.
func (c *Controller) Rearms() []api.Interest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.Interest(nil), c.rearms...)
}

// Releases returns the number of Release calls.
func (c *Controller) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}
