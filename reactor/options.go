// File: reactor/options.go
// Author: momentics <momentics@gmail.com>
//
// Functional options for the Dispatcher.

package reactor

import (
	"log/slog"

	"github.com/momentics/hioload-httpd/api"
)

// DefaultMaxEvents is the number of events fetched per Wait.
const DefaultMaxEvents = 1000

// AcceptLimiter admits or refuses a new connection.
type AcceptLimiter interface {
	Allow() bool
}

type options struct {
	maxEvents      int
	maxConnections int
	limiter        AcceptLimiter
	log            *slog.Logger
	metrics        api.ReactorMetrics
}

// Option configures a Dispatcher.
type Option func(*options)

// WithMaxEvents sets the per-Wait event batch size.
func WithMaxEvents(n int) Option {
	return func(o *options) { o.maxEvents = n }
}

// WithMaxConnections sets the live connection ceiling. Zero means the
// registry capacity is the only bound.
func WithMaxConnections(n int) Option {
	return func(o *options) { o.maxConnections = n }
}

// WithAcceptLimiter gates accepted connections through l.
func WithAcceptLimiter(l AcceptLimiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m api.ReactorMetrics) Option {
	return func(o *options) { o.metrics = m }
}
