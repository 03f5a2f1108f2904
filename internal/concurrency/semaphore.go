// File: internal/concurrency/semaphore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Counting semaphore. The pool posts it once per queued task.

package concurrency

import (
	"fmt"
	"time"
)

// Semaphore is a counting semaphore with no upper bound. Its value never
// goes negative.
type Semaphore struct {
	lock    *Mutex
	nonzero *Cond
	count   int
}

// NewSemaphore creates a semaphore holding initial permits.
func NewSemaphore(initial int) (*Semaphore, error) {
	if initial < 0 {
		return nil, fmt.Errorf("semaphore: negative initial value %d: %w", initial, ErrResourceInit)
	}
	lock, err := NewMutex()
	if err != nil {
		return nil, fmt.Errorf("semaphore: %w", err)
	}
	nonzero, err := NewCond(lock)
	if err != nil {
		return nil, fmt.Errorf("semaphore: %w", err)
	}
	return &Semaphore{lock: lock, nonzero: nonzero, count: initial}, nil
}

// Wait blocks until the value is positive, then decrements it.
func (s *Semaphore) Wait() {
	s.lock.Lock()
	for s.count == 0 {
		s.nonzero.Wait()
	}
	s.count--
	s.lock.Unlock()
}

// TryWait decrements the value if it is positive, without blocking.
func (s *Semaphore) TryWait() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

// WaitTimeout is Wait bounded by d. It reports whether a permit was taken.
func (s *Semaphore) WaitTimeout(d time.Duration) bool {
	deadline := time.Now().Add(d)
	s.lock.Lock()
	defer s.lock.Unlock()
	for s.count == 0 {
		left := time.Until(deadline)
		if left <= 0 {
			return false
		}
		s.nonzero.WaitTimeout(left)
	}
	s.count--
	return true
}

// Post increments the value and wakes at most one waiter.
func (s *Semaphore) Post() {
	s.lock.Lock()
	s.count++
	s.lock.Unlock()
	s.nonzero.Signal()
}

// Value returns the current number of permits.
func (s *Semaphore) Value() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.count
}
