// File: internal/concurrency/workqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Capacity-bounded FIFO of task handles. Not synchronized; ThreadPool guards
// it with its queue mutex.

package concurrency

import "github.com/eapache/queue"

// WorkQueue is a bounded FIFO ring over eapache/queue.
//
// Admission rejects once Len() == Cap(), so at most Cap() items are ever
// resident.
type WorkQueue[T any] struct {
	items    *queue.Queue
	capacity int
}

// NewWorkQueue creates a queue admitting at most capacity items.
func NewWorkQueue[T any](capacity int) *WorkQueue[T] {
	return &WorkQueue[T]{items: queue.New(), capacity: capacity}
}

// Push appends v; returns false if the queue is full.
func (q *WorkQueue[T]) Push(v T) bool {
	if q.items.Length() >= q.capacity {
		return false
	}
	q.items.Add(v)
	return true
}

// Pop removes the front item; ok is false if the queue is empty.
func (q *WorkQueue[T]) Pop() (v T, ok bool) {
	if q.items.Length() == 0 {
		return v, false
	}
	v, _ = q.items.Remove().(T)
	return v, true
}

// Len returns the number of resident items.
func (q *WorkQueue[T]) Len() int { return q.items.Length() }

// Cap returns the admission bound.
func (q *WorkQueue[T]) Cap() int { return q.capacity }

// Drain empties the queue and returns how many items were dropped.
func (q *WorkQueue[T]) Drain() int {
	n := q.items.Length()
	for q.items.Length() > 0 {
		q.items.Remove()
	}
	return n
}
