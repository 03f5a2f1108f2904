// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server assembles the listening socket, readiness poller, connection
// registry, worker pool and HTTP collaborator from one configuration.

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/concurrency"
	"github.com/momentics/hioload-httpd/internal/logger"
	"github.com/momentics/hioload-httpd/internal/ratelimiter"
	"github.com/momentics/hioload-httpd/internal/session"
	"github.com/momentics/hioload-httpd/protocol"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport/tcp"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("server already running")

// Server owns every runtime component. It runs once: after Run returns the
// server is closed.
type Server struct {
	cfg     *control.Config
	log     *slog.Logger
	metrics control.Metrics

	listener   *tcp.Listener
	poller     api.Poller
	handler    *protocol.Handler
	registry   *session.Registry[*protocol.Conn]
	pool       *concurrency.ThreadPool[*protocol.Conn]
	limiter    *ratelimiter.Limiter
	dispatcher *reactor.Dispatcher[*protocol.Conn]
	probes     *control.DebugProbes
	endpoint   *control.Endpoint

	running   atomic.Bool
	closeOnce sync.Once
}

// New validates cfg and builds every component. Nothing runs until Run.
// On failure everything already created is released.
func New(cfg *control.Config, opts ...Option) (_ *Server, err error) {
	if cfg == nil {
		cfg = control.Default()
	}
	if err := control.Validate(cfg); err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	if s.metrics == nil {
		if cfg.Metrics.Enabled {
			s.metrics = control.NewPrometheusMetrics()
		} else {
			s.metrics = control.NoopMetrics{}
		}
	}

	defer func() {
		if err != nil {
			s.closeResources()
		}
	}()

	s.listener, err = tcp.Listen(tcp.ListenConfig{
		Address: cfg.Server.Address,
		Port:    cfg.Server.Port,
		Backlog: cfg.Server.Backlog,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w: %w", api.ErrResourceInit, err)
	}

	s.poller, err = reactor.NewPoller(cfg.Server.MaxEvents)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s.handler, err = protocol.NewHandler(protocol.Config{
		DocRoot:         cfg.HTTP.DocRoot,
		ReadBufferSize:  cfg.HTTP.ReadBufferSize,
		WriteBufferSize: cfg.HTTP.WriteBufferSize,
		MaxFileSize:     cfg.HTTP.MaxFileSize,
		Logger:          s.log,
		Metrics:         s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s.registry, err = session.New(session.Config[*protocol.Conn]{
		MaxFD:   cfg.Server.MaxFD,
		Poller:  s.poller,
		New:     s.handler.NewConn,
		CloseFD: tcp.CloseFD,
		Logger:  s.log,
		Metrics: s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	poolOpts := []concurrency.PoolOption{
		concurrency.WithLogger(s.log),
		concurrency.WithMetrics(s.metrics),
	}
	if cfg.Pool.PinWorkers {
		cpus := cfg.Pool.CPUs
		if len(cpus) == 0 {
			cpus = concurrency.AllowedCPUs()
		}
		poolOpts = append(poolOpts, concurrency.WithCPUPinning(cpus...))
	}
	s.pool, err = concurrency.NewThreadPool[*protocol.Conn](cfg.Pool.Threads, cfg.Pool.MaxRequests, poolOpts...)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s.limiter = ratelimiter.New(cfg.Server.AcceptRate, cfg.Server.AcceptBurst)

	s.dispatcher, err = reactor.NewDispatcher[*protocol.Conn](s.poller, s.listener, s.registry, s.pool,
		reactor.WithMaxEvents(cfg.Server.MaxEvents),
		reactor.WithMaxConnections(cfg.Server.MaxConnections),
		reactor.WithAcceptLimiter(s.limiter),
		reactor.WithLogger(s.log),
		reactor.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s.probes = control.NewDebugProbes()
	s.registerProbes()
	if cfg.Metrics.Enabled {
		s.endpoint = control.NewEndpoint(cfg.Metrics.Address, promRegistry(s.metrics), s.probes, s.log)
	}

	s.log.Info("server initialized",
		"listen", s.listener.Addr(),
		"doc_root", s.handler.Root(),
		"threads", cfg.Pool.Threads,
		"max_requests", cfg.Pool.MaxRequests,
		"max_connections", cfg.Server.MaxConnections,
		"max_fd", cfg.Server.MaxFD,
	)
	return s, nil
}

func (s *Server) registerProbes() {
	s.probes.RegisterProbe("pool", func() any {
		return s.pool.Stats()
	})
	s.probes.RegisterProbe("connections", func() any {
		return map[string]int{
			"live":     s.registry.Live(),
			"ceiling":  s.cfg.Server.MaxConnections,
			"capacity": s.registry.Cap(),
		}
	})
	s.probes.RegisterProbe("accept_limiter", func() any {
		if s.limiter.Unlimited() {
			return "unlimited"
		}
		return map[string]float64{"tokens": s.limiter.Tokens()}
	})
	control.RegisterPlatformProbes(s.probes)
}

// promRegistry returns the registry behind a Prometheus sink, or nil.
func promRegistry(m control.Metrics) *prometheus.Registry {
	if pm, ok := m.(*control.PrometheusMetrics); ok {
		return pm.Registry()
	}
	return nil
}

// Addr returns the bound listening address.
func (s *Server) Addr() netip.AddrPort {
	return s.listener.Addr()
}

// Config returns the configuration the server was built with.
func (s *Server) Config() *control.Config {
	return s.cfg
}

// Probes exposes the debug probe registry.
func (s *Server) Probes() *control.DebugProbes {
	return s.probes
}

// Live returns the number of open client connections.
func (s *Server) Live() int {
	return s.registry.Live()
}

// Close releases every component of a server that will not be run. Run
// performs the same teardown itself.
func (s *Server) Close() error {
	s.closeResources()
	return nil
}

// closeResources tears down in dependency order: workers first so no
// connection has an owner, then connections, then descriptors.
func (s *Server) closeResources() {
	s.closeOnce.Do(func() {
		if s.pool != nil {
			if dropped := s.pool.Close(); dropped > 0 {
				s.log.Warn("queued connections dropped", "count", dropped)
			}
		}
		if s.registry != nil {
			if n := s.registry.CloseAll(); n > 0 {
				s.log.Info("connections closed", "count", n)
			}
		}
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				s.log.Warn("listener close failed", "error", err)
			}
		}
		if s.poller != nil {
			if err := s.poller.Close(); err != nil {
				s.log.Warn("poller close failed", "error", err)
			}
		}
	})
}
