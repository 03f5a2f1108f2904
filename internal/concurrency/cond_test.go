// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCond_NilMutex(t *testing.T) {
	c, err := NewCond(nil)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, ErrResourceInit))
}

func TestCond_SignalWakesWaiterHoldingLock(t *testing.T) {
	m, _ := NewMutex()
	c, err := NewCond(m)
	require.NoError(t, err)

	ready := false
	done := make(chan struct{})
	go func() {
		m.Lock()
		for !ready {
			c.Wait()
		}
		// Wait must return with the lock held
		assert.False(t, m.TryLock())
		m.Unlock()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	m.Lock()
	ready = true
	m.Unlock()
	c.Signal()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestCond_Broadcast(t *testing.T) {
	m, _ := NewMutex()
	c, _ := NewCond(m)

	var wg sync.WaitGroup
	gate := false
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			for !gate {
				c.Wait()
			}
			m.Unlock()
		}()
	}
	time.Sleep(20 * time.Millisecond)

	m.Lock()
	gate = true
	m.Unlock()
	c.Broadcast()

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("broadcast did not wake all waiters")
	}
}

func TestCond_WaitTimeout(t *testing.T) {
	m, _ := NewMutex()
	c, _ := NewCond(m)

	m.Lock()
	assert.False(t, c.WaitTimeout(10*time.Millisecond))
	assert.False(t, m.TryLock(), "lock must be reacquired after timeout")
	m.Unlock()

	// a timed-out waiter must not swallow a later Signal
	c.Signal()
	m.Lock()
	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Signal()
	}()
	assert.True(t, c.WaitTimeout(time.Second))
	m.Unlock()
}

func TestMutex_TryLock(t *testing.T) {
	m, err := NewMutex()
	require.NoError(t, err)
	require.True(t, m.TryLock())
	assert.False(t, m.TryLock())
	m.Unlock()
	m.Lock()
	assert.False(t, m.TryLock())
	m.Unlock()
}
