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

type funcTask func()

func (f funcTask) Process() { f() }

type countingTask struct {
	id    int
	calls *[]atomic.Int32
	wg    *sync.WaitGroup
}

func (c *countingTask) Process() {
	(*c.calls)[c.id].Add(1)
	c.wg.Done()
}

type recordTask struct {
	id  int
	mu  *sync.Mutex
	out *[]int
}

func (r *recordTask) Process() {
	r.mu.Lock()
	*r.out = append(*r.out, r.id)
	r.mu.Unlock()
}

func TestThreadPool_InvalidConfig(t *testing.T) {
	for _, tc := range []struct{ threads, max int }{{0, 10}, {-1, 10}, {4, 0}, {4, -5}} {
		p, err := NewThreadPool[funcTask](tc.threads, tc.max)
		assert.Nil(t, p)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "threads=%d max=%d", tc.threads, tc.max)
	}
}

func TestThreadPool_AppendRejectsAtCapacity(t *testing.T) {
	// workers are not started, so nothing drains the queue
	p, err := newThreadPool[funcTask](1, 2)
	require.NoError(t, err)

	assert.True(t, p.Append(func() {}))
	assert.True(t, p.Append(func() {}))
	assert.False(t, p.Append(func() {}))

	st := p.Stats()
	assert.Equal(t, 2, st.Pending)
	assert.Equal(t, int64(2), st.Submitted)
	assert.Equal(t, int64(1), st.Rejected)
	assert.Equal(t, 2, p.queued.Value())
}

func TestThreadPool_QueueNeverExceedsBound(t *testing.T) {
	const max = 16
	p, err := newThreadPool[funcTask](1, max)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if p.Append(func() {}) {
					accepted.Add(1)
				}
				assert.LessOrEqual(t, p.Stats().Pending, max)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(max), accepted.Load())
	assert.Equal(t, max, p.Stats().Pending)
}

func TestThreadPool_SingleWorkerPreservesFIFO(t *testing.T) {
	p, err := NewThreadPool[*recordTask](1, 10)
	require.NoError(t, err)
	defer p.Close()

	var mu sync.Mutex
	var out []int
	for i := 0; i < 5; i++ {
		require.True(t, p.Append(&recordTask{id: i, mu: &mu, out: &out}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(out) == 5
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, out)
}

func TestThreadPool_EachTaskProcessedExactlyOnce(t *testing.T) {
	const n = 2000
	p, err := NewThreadPool[*countingTask](8, n)
	require.NoError(t, err)
	defer p.Close()

	calls := make([]atomic.Int32, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.True(t, p.Append(&countingTask{id: i, calls: &calls, wg: &wg}))
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks not processed in time")
	}
	for i := range calls {
		assert.Equal(t, int32(1), calls[i].Load(), "task %d", i)
	}
	assert.Equal(t, int64(n), p.Stats().Completed)
}

func TestThreadPool_PanicDoesNotKillWorker(t *testing.T) {
	p, err := NewThreadPool[funcTask](1, 10)
	require.NoError(t, err)
	defer p.Close()

	ran := make(chan struct{})
	require.True(t, p.Append(func() { panic("boom") }))
	require.True(t, p.Append(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
	assert.Equal(t, int64(1), p.Stats().Panicked)
}

type abortTask struct {
	panics  bool
	aborted *atomic.Int32
	done    chan struct{}
}

func (a abortTask) Process() {
	if a.panics {
		panic("boom")
	}
	close(a.done)
}

func (a abortTask) Abort() {
	a.aborted.Add(1)
	panic("abort failed too")
}

func TestThreadPool_PanicAbortsTask(t *testing.T) {
	p, err := NewThreadPool[abortTask](1, 10)
	require.NoError(t, err)
	defer p.Close()

	var aborted atomic.Int32
	done := make(chan struct{})
	require.True(t, p.Append(abortTask{panics: true, aborted: &aborted}))
	require.True(t, p.Append(abortTask{aborted: &aborted, done: done}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after a panicking abort")
	}
	assert.Equal(t, int32(1), aborted.Load(), "only the panicking task is aborted")
	assert.Equal(t, int64(1), p.Stats().Panicked)
}

func TestThreadPool_CloseJoinsWorkers(t *testing.T) {
	p, err := NewThreadPool[funcTask](2, 10)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	require.True(t, p.Append(func() {
		close(started)
		<-release
		finished.Store(true)
	}))
	<-started

	closed := make(chan int)
	go func() { closed <- p.Close() }()

	select {
	case <-closed:
		t.Fatal("Close returned while a task was in flight")
	case <-time.After(30 * time.Millisecond):
	}
	close(release)

	select {
	case dropped := <-closed:
		assert.Equal(t, 0, dropped)
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.True(t, finished.Load())

	// idempotent, and closed pools shed work
	assert.Equal(t, 0, p.Close())
	assert.False(t, p.Append(func() {}))
}

func TestThreadPool_CloseDiscardsQueued(t *testing.T) {
	p, err := NewThreadPool[funcTask](1, 10)
	require.NoError(t, err)

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.Append(func() { close(started); <-block }))
	<-started
	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.True(t, p.Append(func() { ran.Add(1) }))
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(block)
	}()
	assert.Equal(t, 3, p.Close())
	assert.Equal(t, int32(0), ran.Load())
}
