// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphore_RejectsNegativeInitial(t *testing.T) {
	s, err := NewSemaphore(-1)
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, ErrResourceInit))
}

func TestSemaphore_WaitBlocksUntilPost(t *testing.T) {
	s, err := NewSemaphore(0)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Post")
	case <-time.After(50 * time.Millisecond):
	}

	s.Post()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Post")
	}
	assert.Equal(t, 0, s.Value())
}

func TestSemaphore_PostWakesExactlyOneWaiter(t *testing.T) {
	s, err := NewSemaphore(0)
	require.NoError(t, err)

	var woken atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Wait()
			woken.Add(1)
		}()
	}
	time.Sleep(30 * time.Millisecond)

	s.Post()
	require.Eventually(t, func() bool { return woken.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), woken.Load())

	s.Post()
	s.Post()
	wg.Wait()
	assert.Equal(t, int32(3), woken.Load())
	assert.Equal(t, 0, s.Value())
}

func TestSemaphore_PostThenWaitDoesNotBlock(t *testing.T) {
	s, err := NewSemaphore(0)
	require.NoError(t, err)

	s.Post()
	assert.Equal(t, 1, s.Value())

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with a positive value")
	}
	assert.Equal(t, 0, s.Value())
}

func TestSemaphore_TryWaitAndTimeout(t *testing.T) {
	s, err := NewSemaphore(1)
	require.NoError(t, err)

	assert.True(t, s.TryWait())
	assert.False(t, s.TryWait())

	start := time.Now()
	assert.False(t, s.WaitTimeout(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Post()
	}()
	assert.True(t, s.WaitTimeout(time.Second))
	assert.Equal(t, 0, s.Value())
}
