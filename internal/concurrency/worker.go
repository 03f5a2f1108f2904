// File: internal/concurrency/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker goroutine of the ThreadPool.

package concurrency

import (
	"fmt"
	"runtime/debug"
	"time"
)

// worker represents a single pool goroutine.
type worker[T Task] struct {
	id   int
	pool *ThreadPool[T]
	cpu  int // -1: not pinned
}

// run reports its start result on started, then drains the queue until the
// pool stops. The stop flag is only observed after a semaphore wake-up.
func (w *worker[T]) run(started chan<- error) {
	defer w.pool.wg.Done()
	if w.cpu >= 0 {
		if err := PinCurrentThread(w.cpu); err != nil {
			started <- fmt.Errorf("worker %d: %w", w.id, err)
			return
		}
	}
	started <- nil

	for {
		task, ok := w.pool.next()
		if !ok {
			return
		}
		w.execute(task)
	}
}

// execute runs the task and updates statistics, recovering from panics so
// the worker stays alive. A panicking Aborter is aborted.
func (w *worker[T]) execute(task T) {
	p := w.pool
	began := time.Now()
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			p.panicked.Add(1)
			p.log.Error("task panicked", "worker", w.id, "panic", r, "stack", string(debug.Stack()))
			if a, ok := any(task).(Aborter); ok {
				w.abort(a)
			}
		}
		p.completed.Add(1)
		p.metrics.TaskDone(time.Since(began), panicked)
	}()
	task.Process()
}

func (w *worker[T]) abort(a Aborter) {
	defer func() {
		if r := recover(); r != nil {
			w.pool.log.Error("task abort panicked", "worker", w.id, "panic", r)
		}
	}()
	a.Abort()
}
