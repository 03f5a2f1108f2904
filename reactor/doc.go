// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the poll-mode dispatch loop and its Linux epoll
// implementation. One Dispatcher goroutine owns the listening socket and
// hands readable connections to a bounded worker pool; client descriptors are
// armed edge-triggered and one-shot, so each connection has exactly one owner
// at a time.
package reactor
