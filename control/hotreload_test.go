package control

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUpdateNotifiesInOrder(t *testing.T) {
	first := Default()
	s := NewStore(first)
	assert.Same(t, first, s.Current())

	var calls []string
	s.OnReload(func(prev, next *Config) {
		assert.Same(t, first, prev)
		calls = append(calls, "a:"+next.Logging.Level)
	})
	s.OnReload(func(_, next *Config) {
		calls = append(calls, "b:"+next.Logging.Level)
	})

	second := Default()
	second.Logging.Level = "DEBUG"
	s.Update(second)

	assert.Same(t, second, s.Current())
	assert.Equal(t, []string{"a:DEBUG", "b:DEBUG"}, calls)
}

func TestStoreUpdateUsesListenerSnapshot(t *testing.T) {
	s := NewStore(Default())
	var late int
	s.OnReload(func(_, _ *Config) {
		// registering from inside a listener must not deadlock
		s.OnReload(func(_, _ *Config) { late++ })
	})

	s.Update(Default())
	assert.Zero(t, late, "listeners added during Update wait for the next one")
	s.Update(Default())
	assert.Equal(t, 1, late)
}

func TestWatchRequiresFile(t *testing.T) {
	assert.Error(t, Watch("", NewStore(Default()), nil))
	assert.Error(t, Watch(filepath.Join(t.TempDir(), "absent.yaml"), NewStore(Default()), nil))
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	store := NewStore(cfg)

	var mu sync.Mutex
	var levels []string
	store.OnReload(func(_, next *Config) {
		mu.Lock()
		defer mu.Unlock()
		levels = append(levels, next.Logging.Level)
	})
	require.NoError(t, Watch(path, store, nil))

	// An invalid edit is ignored.
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))

	require.Eventually(t, func() bool {
		return store.Current().Logging.Level == "WARN"
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, levels, "LOUD")
}
