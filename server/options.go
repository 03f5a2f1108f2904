// File: server/options.go
// Package server defines functional options for the Server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"

	"github.com/momentics/hioload-httpd/control"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics overrides the metrics sink chosen from the configuration.
// A *control.PrometheusMetrics sink also backs the /metrics endpoint.
func WithMetrics(m control.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}
