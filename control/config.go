// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Server configuration model and loader.

package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// HIOLOAD_HTTPD_POOL_THREADS=12.
const EnvPrefix = "HIOLOAD_HTTPD"

// Config is the complete server configuration.
//
// Sources, highest precedence first: environment, config file, defaults.
// The listening port given on the command line overrides all of them.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Pool    PoolConfig    `mapstructure:"pool" yaml:"pool"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// DEBUG, INFO, WARN or ERROR, case-insensitive.
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	// stdout, stderr or a file path.
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig sizes the listener and the reactor.
type ServerConfig struct {
	Address         string        `mapstructure:"address" yaml:"address" validate:"omitempty,ip"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Backlog         int           `mapstructure:"backlog" yaml:"backlog" validate:"gt=0"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections" validate:"gt=0"`
	MaxFD           int           `mapstructure:"max_fd" yaml:"max_fd" validate:"gt=0"`
	MaxEvents       int           `mapstructure:"max_events" yaml:"max_events" validate:"gt=0"`
	AcceptRate      float64       `mapstructure:"accept_rate" yaml:"accept_rate" validate:"gte=0"`
	AcceptBurst     int           `mapstructure:"accept_burst" yaml:"accept_burst" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Threads     int   `mapstructure:"threads" yaml:"threads" validate:"gt=0"`
	MaxRequests int   `mapstructure:"max_requests" yaml:"max_requests" validate:"gt=0"`
	PinWorkers  bool  `mapstructure:"pin_workers" yaml:"pin_workers"`
	CPUs        []int `mapstructure:"cpus" yaml:"cpus,omitempty" validate:"dive,gte=0"`
}

// HTTPConfig configures the static file collaborator.
type HTTPConfig struct {
	DocRoot         string `mapstructure:"doc_root" yaml:"doc_root" validate:"required"`
	ReadBufferSize  int    `mapstructure:"read_buffer_size" yaml:"read_buffer_size" validate:"gte=256"`
	WriteBufferSize int    `mapstructure:"write_buffer_size" yaml:"write_buffer_size" validate:"gte=256"`
	MaxFileSize     int64  `mapstructure:"max_file_size" yaml:"max_file_size" validate:"gt=0"`
}

// MetricsConfig controls the observability endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address" validate:"omitempty,listen_addr"`
}

// Load reads configuration from path (empty means defaults and environment
// only), applies defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setupViper(v, path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

// setupViper registers defaults, so every key is known to AutomaticEnv, and
// the environment mapping.
func setupViper(v *viper.Viper, path string) {
	def := Default()
	for key, val := range map[string]any{
		"logging.level":           def.Logging.Level,
		"logging.format":          def.Logging.Format,
		"logging.output":          def.Logging.Output,
		"server.address":          def.Server.Address,
		"server.port":             def.Server.Port,
		"server.backlog":          def.Server.Backlog,
		"server.max_connections":  def.Server.MaxConnections,
		"server.max_fd":           def.Server.MaxFD,
		"server.max_events":       def.Server.MaxEvents,
		"server.accept_rate":      def.Server.AcceptRate,
		"server.accept_burst":     def.Server.AcceptBurst,
		"server.shutdown_timeout": def.Server.ShutdownTimeout,
		"pool.threads":            def.Pool.Threads,
		"pool.max_requests":       def.Pool.MaxRequests,
		"pool.pin_workers":        def.Pool.PinWorkers,
		"pool.cpus":               def.Pool.CPUs,
		"http.doc_root":           def.HTTP.DocRoot,
		"http.read_buffer_size":   def.HTTP.ReadBufferSize,
		"http.write_buffer_size":  def.HTTP.WriteBufferSize,
		"http.max_file_size":      def.HTTP.MaxFileSize,
		"metrics.enabled":         def.Metrics.Enabled,
		"metrics.address":         def.Metrics.Address,
	} {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	}
}

// decode maps the merged viper settings onto Config.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("config decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
