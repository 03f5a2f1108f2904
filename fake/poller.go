// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake readiness poller with one-shot semantics.

package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-httpd/api"
)

type registration struct {
	listener bool
	armed    bool
	interest api.Interest
}

// Poller is a fake implementation of api.Poller. Events are injected with
// Fire; a client descriptor delivers at most one event per arm, exactly
// like an edge-triggered one-shot registration.
type Poller struct {
	mu          sync.Mutex
	fds         map[int]*registration
	pending     []api.Event
	notify      chan struct{}
	woken       bool
	interrupted int
	waitErr     error
	closed      bool

	addErr    error
	modifyErr error
	removed   []int
}

var _ api.Poller = (*Poller)(nil)

// NewPoller creates an empty fake poller.
func NewPoller() *Poller {
	return &Poller{
		fds:    make(map[int]*registration),
		notify: make(chan struct{}, 1),
	}
}

func (p *Poller) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// AddListener implements api.Poller.AddListener.
func (p *Poller) AddListener(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.addErr != nil {
		return p.addErr
	}
	p.fds[fd] = &registration{listener: true, armed: true, interest: api.InterestRead}
	return nil
}

// Add implements api.Poller.Add.
func (p *Poller) Add(fd int, in api.Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.addErr != nil {
		return p.addErr
	}
	if _, ok := p.fds[fd]; ok {
		return fmt.Errorf("fake poller: fd %d already registered", fd)
	}
	p.fds[fd] = &registration{armed: true, interest: in}
	return nil
}

// Modify implements api.Poller.Modify.
func (p *Poller) Modify(fd int, in api.Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modifyErr != nil {
		return p.modifyErr
	}
	r, ok := p.fds[fd]
	if !ok {
		return fmt.Errorf("fake poller: fd %d not registered", fd)
	}
	r.armed = true
	r.interest = in
	return nil
}

// Remove implements api.Poller.Remove.
func (p *Poller) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.fds, fd)
	p.removed = append(p.removed, fd)
	return nil
}

// Fire injects a readiness condition for fd. It reports whether an event
// was queued: a disarmed or unknown descriptor produces nothing.
func (p *Poller) Fire(fd int, mask api.EventMask) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.fds[fd]
	if !ok || !r.armed {
		return false
	}
	if !r.listener {
		r.armed = false
	}
	p.pending = append(p.pending, api.Event{Fd: fd, Mask: mask})
	p.signal()
	return true
}

// Wait implements api.Poller.Wait.
func (p *Poller) Wait(events []api.Event, timeoutMs int) (int, error) {
	var deadline <-chan time.Time
	if timeoutMs >= 0 {
		t := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer t.Stop()
		deadline = t.C
	}
	for {
		p.mu.Lock()
		switch {
		case p.closed:
			p.mu.Unlock()
			return 0, api.ErrClosed
		case p.waitErr != nil:
			err := p.waitErr
			p.mu.Unlock()
			return 0, err
		case p.interrupted > 0:
			p.interrupted--
			p.mu.Unlock()
			return 0, api.ErrInterrupted
		case len(p.pending) > 0:
			n := copy(events, p.pending)
			p.pending = p.pending[n:]
			if len(p.pending) > 0 {
				p.signal()
			}
			p.mu.Unlock()
			return n, nil
		case p.woken:
			p.woken = false
			p.mu.Unlock()
			return 0, nil
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-deadline:
			return 0, nil
		}
	}
}

// Wakeup implements api.Poller.Wakeup.
func (p *Poller) Wakeup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.woken = true
	p.signal()
	return nil
}

// Close implements api.Poller.Close.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.signal()
	return nil
}

// Interrupt makes the next n Wait calls return api.ErrInterrupted.
func (p *Poller) Interrupt(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interrupted += n
	p.signal()
}

// SetWaitError makes every following Wait fail with err.
func (p *Poller) SetWaitError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waitErr = err
	p.signal()
}

// SetAddError configures Add and AddListener to fail with err.
func (p *Poller) SetAddError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addErr = err
}

// SetModifyError configures Modify to fail with err.
func (p *Poller) SetModifyError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modifyErr = err
}

// Registered reports whether fd is currently registered.
func (p *Poller) Registered(fd int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.fds[fd]
	return ok
}

// Armed reports whether fd is registered and armed, and for what.
func (p *Poller) Armed(fd int) (api.Interest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.fds[fd]
	if !ok || !r.armed {
		return 0, false
	}
	return r.interest, true
}

// Removed returns every descriptor passed to Remove, in order.
func (p *Poller) Removed() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.removed...)
}
