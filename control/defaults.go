// control/defaults.go
// Author: momentics <momentics@gmail.com>
//
// Default configuration values and rendering.

package control

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default sizing.
const (
	DefaultThreads        = 6
	DefaultMaxRequests    = 1000
	DefaultMaxEvents      = 1000
	DefaultMaxFD          = 65536
	DefaultMaxConnections = 65536
	DefaultBacklog        = 1024
)

// Default returns a complete, valid configuration.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero values. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyPoolDefaults(&cfg.Pool)
	applyHTTPDefaults(&cfg.HTTP)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Backlog == 0 {
		cfg.Backlog = DefaultBacklog
	}
	if cfg.MaxFD == 0 {
		cfg.MaxFD = DefaultMaxFD
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = min(DefaultMaxConnections, cfg.MaxFD)
	}
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applyPoolDefaults(cfg *PoolConfig) {
	if cfg.Threads == 0 {
		cfg.Threads = DefaultThreads
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
}

func applyHTTPDefaults(cfg *HTTPConfig) {
	if cfg.DocRoot == "" {
		cfg.DocRoot = "."
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = 2048
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = 1024
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = 64 << 20
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:9090"
	}
}

const defaultHeader = `# hioload-httpd configuration
#
# Every key can be overridden with an environment variable named
# HIOLOAD_HTTPD_<SECTION>_<KEY>, e.g. HIOLOAD_HTTPD_POOL_THREADS=12.
# The listening port given on the command line takes precedence.

`

// RenderDefault returns the default configuration as commented YAML.
func RenderDefault() ([]byte, error) {
	body, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("render default config: %w", err)
	}
	return append([]byte(defaultHeader), body...), nil
}

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}
	}
	data, err := RenderDefault()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
