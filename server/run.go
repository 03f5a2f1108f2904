// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor lifecycle, graceful shutdown and live reconfiguration.

package server

import (
	"context"
	"errors"
	"reflect"

	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/logger"
)

// Run starts the metrics endpoint, if configured, and drives the reactor on
// the calling goroutine until ctx is cancelled or the readiness wait fails.
// It then tears every component down; queued connections are dropped and
// open ones closed. A cancelled context yields a nil error.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if s.endpoint != nil {
		if err := s.endpoint.Start(); err != nil {
			s.closeResources()
			return err
		}
	}

	s.log.Info("server started", "listen", s.Addr())
	runErr := s.dispatcher.Run(ctx)

	s.log.Info("server shutting down")
	s.closeResources()

	var stopErr error
	if s.endpoint != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		stopErr = s.endpoint.Stop(stopCtx)
		cancel()
	}
	s.log.Info("server stopped")
	return errors.Join(runErr, stopErr)
}

// Reload applies the settings that may change while running: the log level
// and the accept rate limit. Changes to anything else are reported and
// ignored. It matches the listener signature of control.Store.OnReload.
func (s *Server) Reload(prev, next *control.Config) {
	if next == nil {
		return
	}
	if prev == nil {
		prev = s.cfg
	}

	if next.Logging.Level != prev.Logging.Level {
		logger.SetLevel(next.Logging.Level)
		s.log.Info("log level changed", "from", prev.Logging.Level, "to", next.Logging.Level)
	}
	if next.Server.AcceptRate != prev.Server.AcceptRate || next.Server.AcceptBurst != prev.Server.AcceptBurst {
		s.limiter.Set(next.Server.AcceptRate, next.Server.AcceptBurst)
		s.log.Info("accept rate changed",
			"rate", next.Server.AcceptRate, "burst", next.Server.AcceptBurst)
	}

	for _, section := range fixedSections(prev, next) {
		s.log.Warn("setting requires restart, change ignored", "section", section)
	}
}

// fixedSections names the sections whose non-reloadable fields differ.
func fixedSections(prev, next *control.Config) []string {
	var changed []string
	ps, ns := prev.Server, next.Server
	ps.AcceptRate, ps.AcceptBurst = 0, 0
	ns.AcceptRate, ns.AcceptBurst = 0, 0
	if ps != ns {
		changed = append(changed, "server")
	}
	if !reflect.DeepEqual(prev.Pool, next.Pool) {
		changed = append(changed, "pool")
	}
	if prev.HTTP != next.HTTP {
		changed = append(changed, "http")
	}
	if prev.Metrics != next.Metrics {
		changed = append(changed, "metrics")
	}
	if prev.Logging.Format != next.Logging.Format || prev.Logging.Output != next.Logging.Output {
		changed = append(changed, "logging")
	}
	return changed
}
