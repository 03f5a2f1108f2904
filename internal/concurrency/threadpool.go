// File: internal/concurrency/threadpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ThreadPool: a fixed set of workers draining a bounded FIFO of task handles
// under a mutex and a counting semaphore.

package concurrency

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/logger"
)

const (
	DefaultThreadNumber = 6
	DefaultMaxRequests  = 1000
)

// Task is a unit of work. The pool only ever calls Process and never owns
// the value behind the handle.
type Task interface {
	Process()
}

// Aborter is implemented by tasks that hold resources beyond Process. When
// Process panics the worker calls Abort so the task can give them back.
type Aborter interface {
	Abort()
}

// Stats is a point-in-time view of pool counters.
type Stats struct {
	Workers   int
	Capacity  int
	Pending   int
	Submitted int64
	Rejected  int64
	Completed int64
	Panicked  int64
}

// ThreadPool dispatches tasks to a fixed number of worker goroutines.
type ThreadPool[T Task] struct {
	threadNumber int
	maxRequests  int

	queue     *WorkQueue[T]
	queueLock *Mutex
	queued    *Semaphore
	stop      atomic.Bool

	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   int

	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64

	log     *slog.Logger
	metrics api.PoolMetrics
	cpus    []int
}

// PoolOption customizes pool construction.
type PoolOption func(*poolOptions)

type poolOptions struct {
	log     *slog.Logger
	metrics api.PoolMetrics
	cpus    []int
}

// WithLogger sets the logger used for worker lifecycle and task panics.
func WithLogger(l *slog.Logger) PoolOption {
	return func(o *poolOptions) { o.log = l }
}

// WithMetrics attaches a pool observer.
func WithMetrics(m api.PoolMetrics) PoolOption {
	return func(o *poolOptions) { o.metrics = m }
}

// WithCPUPinning locks each worker to an OS thread bound to cpus[i%len(cpus)].
func WithCPUPinning(cpus ...int) PoolOption {
	return func(o *poolOptions) { o.cpus = append([]int(nil), cpus...) }
}

// NewThreadPool validates sizing and starts threadNumber workers. If any
// worker fails to start, the ones already running are stopped and joined
// before the error is returned.
func NewThreadPool[T Task](threadNumber, maxRequests int, opts ...PoolOption) (*ThreadPool[T], error) {
	p, err := newThreadPool[T](threadNumber, maxRequests, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.start(); err != nil {
		return nil, err
	}
	return p, nil
}

// newThreadPool builds the pool without starting workers.
func newThreadPool[T Task](threadNumber, maxRequests int, opts ...PoolOption) (*ThreadPool[T], error) {
	if threadNumber <= 0 || maxRequests <= 0 {
		return nil, fmt.Errorf("thread pool: threads=%d max_requests=%d: %w",
			threadNumber, maxRequests, ErrInvalidConfig)
	}
	o := poolOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Default()
	}
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}

	lock, err := NewMutex()
	if err != nil {
		return nil, fmt.Errorf("thread pool: %w", err)
	}
	queued, err := NewSemaphore(0)
	if err != nil {
		return nil, fmt.Errorf("thread pool: %w", err)
	}
	return &ThreadPool[T]{
		threadNumber: threadNumber,
		maxRequests:  maxRequests,
		queue:        NewWorkQueue[T](maxRequests),
		queueLock:    lock,
		queued:       queued,
		log:          o.log.With("component", "threadpool"),
		metrics:      o.metrics,
		cpus:         o.cpus,
	}, nil
}

func (p *ThreadPool[T]) start() error {
	started := make(chan error, p.threadNumber)
	for i := 0; i < p.threadNumber; i++ {
		w := &worker[T]{id: i, pool: p, cpu: -1}
		if len(p.cpus) > 0 {
			w.cpu = p.cpus[i%len(p.cpus)]
		}
		p.wg.Add(1)
		go w.run(started)
	}

	var spawnErr error
	for i := 0; i < p.threadNumber; i++ {
		if err := <-started; err != nil && spawnErr == nil {
			spawnErr = err
		}
	}
	if spawnErr != nil {
		p.Close()
		return fmt.Errorf("thread pool: %w: %w", ErrSpawn, spawnErr)
	}
	p.log.Debug("workers started", "threads", p.threadNumber, "max_requests", p.maxRequests)
	return nil
}

// Append queues task for processing. It never blocks: false means the queue
// is full or the pool is closed, and the caller must shed the work.
func (p *ThreadPool[T]) Append(task T) bool {
	p.queueLock.Lock()
	if p.stop.Load() || !p.queue.Push(task) {
		p.queueLock.Unlock()
		p.rejected.Add(1)
		p.metrics.TaskRejected()
		return false
	}
	depth := p.queue.Len()
	p.queued.Post()
	p.queueLock.Unlock()

	p.submitted.Add(1)
	p.metrics.TaskAppended(depth)
	return true
}

// next blocks for a queued task. ok is false once the pool is stopping.
func (p *ThreadPool[T]) next() (task T, ok bool) {
	for {
		p.queued.Wait()
		if p.stop.Load() {
			return task, false
		}
		p.queueLock.Lock()
		task, ok = p.queue.Pop()
		p.queueLock.Unlock()
		if ok {
			return task, true
		}
	}
}

// Close stops the workers and waits for them to exit. Tasks already running
// complete; tasks still queued are discarded and their count is returned.
// Close is idempotent.
func (p *ThreadPool[T]) Close() int {
	p.closeOnce.Do(func() {
		p.queueLock.Lock()
		p.stop.Store(true)
		p.dropped = p.queue.Drain()
		p.queueLock.Unlock()

		for i := 0; i < p.threadNumber; i++ {
			p.queued.Post()
		}
		p.wg.Wait()
		p.log.Debug("workers stopped", "dropped", p.dropped)
	})
	return p.dropped
}

// Stats returns current pool counters.
func (p *ThreadPool[T]) Stats() Stats {
	p.queueLock.Lock()
	pending := p.queue.Len()
	p.queueLock.Unlock()
	return Stats{
		Workers:   p.threadNumber,
		Capacity:  p.maxRequests,
		Pending:   pending,
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

type noopMetrics struct{}

func (noopMetrics) TaskAppended(int)                 {}
func (noopMetrics) TaskRejected()                    {}
func (noopMetrics) TaskDone(_ time.Duration, _ bool) {}
