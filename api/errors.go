// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types shared by the reactor, registry and protocol layers.

package api

import "errors"

// Common errors used across the server.
var (
	// ErrResourceInit reports that an OS object (poller, socket, eventfd)
	// could not be created. Fatal at startup.
	ErrResourceInit = errors.New("resource initialization failed")

	// ErrInvalidConfig reports invalid sizing or options.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrQueueFull reports a connection rejected by the worker pool.
	ErrQueueFull = errors.New("work queue full")

	// ErrConnectionIO reports a read or write failure scoped to one connection.
	ErrConnectionIO = errors.New("connection i/o failed")

	// ErrAccept reports a failed accept attempt. The loop continues.
	ErrAccept = errors.New("accept failed")

	// ErrMultiplexWait reports a fatal readiness wait failure.
	ErrMultiplexWait = errors.New("multiplex wait failed")

	// ErrInterrupted reports a wait interrupted by a signal; callers retry.
	ErrInterrupted = errors.New("wait interrupted")

	// ErrWouldBlock reports that a non-blocking call has nothing to do.
	ErrWouldBlock = errors.New("operation would block")

	// ErrUnsupported reports a platform without the required facilities.
	ErrUnsupported = errors.New("operation not supported on this platform")

	// ErrClosed reports use of a closed component.
	ErrClosed = errors.New("component is closed")
)
