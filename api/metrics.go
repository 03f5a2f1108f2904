// File: api/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Metrics contracts implemented by the control package. Components accept
// nil and fall back to a no-op implementation.

package api

import "time"

// PoolMetrics observes the worker pool.
type PoolMetrics interface {
	TaskAppended(depth int)
	TaskRejected()
	TaskDone(elapsed time.Duration, panicked bool)
}

// ReactorMetrics observes the dispatch loop and the connection registry.
type ReactorMetrics interface {
	ConnectionAccepted()
	ConnectionRejected(reason string)
	ConnectionClosed()
	SetActiveConnections(n int)
	EventDispatched(kind string)
}
