// File: internal/concurrency/cond.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Condition variable bound to a Mutex, with FIFO wake order and timed waits.

package concurrency

import (
	"fmt"
	"sync"
	"time"
)

// Cond is a condition variable. The caller must hold L across Wait and
// WaitTimeout. Signal and Broadcast may be called with or without L held.
type Cond struct {
	L *Mutex

	mu      sync.Mutex
	waiters []chan struct{}
}

// NewCond binds a condition variable to l.
func NewCond(l *Mutex) (*Cond, error) {
	if l == nil {
		return nil, fmt.Errorf("cond: nil mutex: %w", ErrResourceInit)
	}
	return &Cond{L: l}, nil
}

// enqueue registers the caller as a waiter before L is released, so a
// Signal issued between Unlock and the receive is never lost.
func (c *Cond) enqueue() chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

// Wait atomically releases L and suspends the caller until signalled,
// then reacquires L before returning.
func (c *Cond) Wait() {
	ch := c.enqueue()
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// WaitTimeout is Wait bounded by d. It reports whether the caller was
// signalled before the deadline. L is held again on return either way.
func (c *Cond) WaitTimeout(d time.Duration) bool {
	ch := c.enqueue()
	c.L.Unlock()
	defer c.L.Lock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return false
		}
	}
	// a Signal already dequeued us and closed ch; honour it
	return true
}

// Signal wakes the longest-waiting goroutine, if any.
func (c *Cond) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		return
	}
	ch := c.waiters[0]
	c.waiters[0] = nil
	c.waiters = c.waiters[1:]
	close(ch)
}

// Broadcast wakes every waiting goroutine.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}
