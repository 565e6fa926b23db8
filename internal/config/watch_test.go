package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"info\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	h := NewHolder(cfg, path)
	reloaded := make(chan *Config, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, h, testLogger(t), func(c *Config) { reloaded <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlog_level = \"debug\"\n"), 0o600))

	select {
	case c := <-reloaded:
		assert.Equal(t, "debug", c.Logging.LogLevel)
		assert.Equal(t, "debug", h.Config().Logging.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_InvalidFileKeepsPrevious(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"info\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	h := NewHolder(cfg, path)
	reload(h, testLogger(t), nil)
	assert.Equal(t, "info", h.Config().Logging.LogLevel)

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlog_level = \"loud\"\n"), 0o600))
	reload(h, testLogger(t), func(*Config) { t.Fatal("onReload called for invalid config") })

	assert.Equal(t, "info", h.Config().Logging.LogLevel)
}

func TestWatch_MissingDirectory(t *testing.T) {
	h := NewHolder(DefaultConfig(), filepath.Join(t.TempDir(), "gone", "config.toml"))

	err := Watch(context.Background(), h, testLogger(t), nil)
	require.Error(t, err)
}
