// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Synchronization primitives (Mutex, Cond, Semaphore) and the bounded
// ThreadPool that decouples readiness detection from request processing.
//
// The pool follows a load-shedding contract: Append never blocks and reports
// false once the queue holds max_requests tasks. Close joins every worker.
package concurrency
