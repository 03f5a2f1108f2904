package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRun_MissingPortPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "usage: hioload-httpd")
	assert.Empty(t, stdout.String())
}

func TestRun_InvalidPort(t *testing.T) {
	for _, arg := range []string{"http", "0", "-1", "70000"} {
		t.Run(arg, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run([]string{"--", arg}, &stdout, &stderr)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr.String(), "usage: hioload-httpd")
		})
	}
}

func TestRun_TooManyArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"8080", "8081"}, &stdout, &stderr))
}

func TestRun_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"--nope", "8080"}, &stdout, &stderr))
}

func TestParseArgs(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"--config", "/etc/httpd.yaml", "--log-level", "debug", "8080"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 8080, opts.port)
	assert.Equal(t, "/etc/httpd.yaml", opts.configPath)
	assert.Equal(t, "debug", opts.logLevel)
}

func TestRun_WriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "httpd.yaml")
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"--write-config", path}, &stdout, &stderr), stderr.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Contains(t, doc, "server")
	assert.Contains(t, doc, "pool")

	// refuses to overwrite without --force
	assert.Equal(t, 1, run([]string{"--write-config", path}, &stdout, &stderr))
	assert.Equal(t, 0, run([]string{"--write-config", path, "--force"}, &stdout, &stderr))
}

func TestRun_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  threads: -3\n"), 0o644))
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"--config", path, "8080"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "hioload-httpd:")
}
