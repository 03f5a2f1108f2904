// control/endpoint.go
// Author: momentics <momentics@gmail.com>
//
// HTTP endpoint exposing /metrics and /debug/state.

package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/momentics/hioload-httpd/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Endpoint serves Prometheus metrics and debug probes on a side port. It
// runs on net/http, apart from the reactor.
type Endpoint struct {
	addr     string
	server   *http.Server
	log      *slog.Logger
	mu       sync.Mutex
	ln       net.Listener
	stopOnce sync.Once
	done     chan struct{}
}

// NewEndpoint builds the mux. reg may be nil, in which case /metrics
// reports that collection is disabled.
func NewEndpoint(addr string, reg *prometheus.Registry, probes *DebugProbes, log *slog.Logger) *Endpoint {
	if log == nil {
		log = logger.Default()
	}
	mux := http.NewServeMux()
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics collection is disabled", http.StatusServiceUnavailable)
		})
	}
	if probes != nil {
		mux.Handle("/debug/state", probes)
	}
	return &Endpoint{
		addr: addr,
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log:  log.With("component", "metrics"),
		done: make(chan struct{}),
	}
}

// Start binds the address and serves in the background.
func (e *Endpoint) Start() error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", e.addr, err)
	}
	e.mu.Lock()
	e.ln = ln
	e.mu.Unlock()
	e.log.Info("metrics endpoint listening", "addr", ln.Addr().String())
	go func() {
		defer close(e.done)
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics endpoint failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (e *Endpoint) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln != nil {
		return e.ln.Addr().String()
	}
	return e.addr
}

// Stop shuts the endpoint down gracefully. Safe to call more than once.
func (e *Endpoint) Stop(ctx context.Context) error {
	var err error
	e.stopOnce.Do(func() {
		e.mu.Lock()
		started := e.ln != nil
		e.mu.Unlock()
		if !started {
			return
		}
		if err = e.server.Shutdown(ctx); err != nil {
			err = fmt.Errorf("metrics endpoint shutdown: %w", err)
			return
		}
		<-e.done
	})
	return err
}
