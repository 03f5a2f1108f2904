// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot-reload, runtime metrics and debug introspection layer.
//
// Provides:
//   - Config loading from YAML, environment and defaults (viper)
//   - Declarative validation (validator/v10) and default rendering (yaml.v3)
//   - A config Store with reload listeners fed by a file watcher
//   - Prometheus metrics for the reactor, pool and HTTP layers
//   - Named debug probes exported as JSON
package control
