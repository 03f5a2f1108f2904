// control/validation.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/momentics/hioload-httpd/api"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("listen_addr", validateListenAddr); err != nil {
		panic(err)
	}
	return v
}

// validateListenAddr accepts host:port where port may be 0 (ephemeral), which
// the stock hostname_port rule refuses. The host may be empty, an IP literal
// or a hostname.
func validateListenAddr(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return false
	}
	if host == "" {
		return true
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return true
	}
	return validHostname(host)
}

func validHostname(host string) bool {
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return false
			}
		}
	}
	return true
}

// Validate checks struct tags and cross-field rules. Errors wrap
// api.ErrInvalidConfig.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Server.MaxConnections > cfg.Server.MaxFD {
		return fmt.Errorf("server.max_connections (%d) exceeds server.max_fd (%d): %w",
			cfg.Server.MaxConnections, cfg.Server.MaxFD, api.ErrInvalidConfig)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics are enabled: %w", api.ErrInvalidConfig)
	}
	if !cfg.Pool.PinWorkers && len(cfg.Pool.CPUs) > 0 {
		return fmt.Errorf("pool.cpus is set but pool.pin_workers is false: %w", api.ErrInvalidConfig)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v): %w",
			e.Namespace(), e.Tag(), e.Value(), api.ErrInvalidConfig)
	}
	return fmt.Errorf("%w: %w", api.ErrInvalidConfig, err)
}
