// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Configuration store with reload listeners, fed by a config file watcher.

package control

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/momentics/hioload-httpd/internal/logger"
	"github.com/spf13/viper"
)

// Store holds the current configuration snapshot and the listeners notified
// when it changes.
type Store struct {
	mu        sync.RWMutex
	current   *Config
	listeners []func(prev, next *Config)
}

// NewStore creates a store with an initial snapshot.
func NewStore(cfg *Config) *Store {
	return &Store{current: cfg}
}

// Current returns the latest snapshot. Callers must not mutate it.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnReload registers a listener invoked synchronously on every Update.
func (s *Store) OnReload(fn func(prev, next *Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Update swaps in next and notifies listeners in registration order.
func (s *Store) Update(next *Config) {
	s.mu.Lock()
	prev := s.current
	s.current = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(prev, next)
	}
}

// Watch re-reads path whenever it changes on disk and pushes every valid
// result into store. Invalid edits are logged and ignored.
func Watch(path string, store *Store, log *slog.Logger) error {
	if path == "" {
		return fmt.Errorf("watch: no config file")
	}
	if log == nil {
		log = logger.Default()
	}
	log = log.With("component", "config")

	v := viper.New()
	setupViper(v, path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		log.Info("config reloaded", "file", e.Name, "op", e.Op.String())
		store.Update(cfg)
	})
	v.WatchConfig()
	return nil
}
