// File: internal/concurrency/mutex.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Mutual-exclusion lock used by the work queue and the condition variable.

package concurrency

import "sync"

// Mutex is a non-reentrant mutual-exclusion lock. Unlocking a Mutex that is
// not locked is a fatal runtime error.
type Mutex struct {
	mu sync.Mutex
}

// NewMutex returns an unlocked Mutex.
func NewMutex() (*Mutex, error) {
	return &Mutex{}, nil
}

// Lock acquires the lock, blocking until it is available.
func (m *Mutex) Lock() { m.mu.Lock() }

// Unlock releases the lock.
func (m *Mutex) Unlock() { m.mu.Unlock() }

// TryLock acquires the lock only if it is free.
func (m *Mutex) TryLock() bool { return m.mu.TryLock() }
