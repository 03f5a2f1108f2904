// File: protocol/handler.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared configuration for all connections of one server.

package protocol

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/internal/logger"
)

// Buffer and file size defaults.
const (
	DefaultReadBufferSize  = 2048
	DefaultWriteBufferSize = 1024
	DefaultMaxFileSize     = 64 << 20
)

// Metrics receives one observation per response.
type Metrics interface {
	RequestServed(method string, status int)
}

// Config describes what the server serves.
type Config struct {
	DocRoot         string
	ReadBufferSize  int
	WriteBufferSize int
	MaxFileSize     int64
	Logger          *slog.Logger
	Metrics         Metrics
}

// Handler creates connections sharing one Config.
type Handler struct {
	root    string
	cfg     Config
	log     *slog.Logger
	metrics Metrics
}

// NewHandler validates cfg and resolves the document root.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.DocRoot == "" {
		return nil, fmt.Errorf("http: doc_root is required: %w", api.ErrInvalidConfig)
	}
	root, err := filepath.Abs(cfg.DocRoot)
	if err != nil {
		return nil, fmt.Errorf("http: doc_root %q: %w", cfg.DocRoot, err)
	}
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("http: doc_root: %w: %w", api.ErrInvalidConfig, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("http: doc_root %s is not a directory: %w", root, api.ErrInvalidConfig)
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = DefaultWriteBufferSize
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	return &Handler{
		root:    root,
		cfg:     cfg,
		log:     cfg.Logger.With("component", "http"),
		metrics: cfg.Metrics,
	}, nil
}

// Root returns the absolute document root.
func (h *Handler) Root() string { return h.root }

// NewConn allocates an unbound connection. Buffers are allocated once and
// reused across descriptors.
func (h *Handler) NewConn() *Conn {
	return &Conn{
		h:    h,
		fd:   -1,
		rbuf: make([]byte, h.cfg.ReadBufferSize),
		head: make([]byte, 0, h.cfg.WriteBufferSize),
	}
}

type noopMetrics struct{}

func (noopMetrics) RequestServed(string, int) {}
