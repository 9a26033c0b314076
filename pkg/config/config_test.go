package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, DefaultListenAddr, cfg.Coordinator.ListenAddr)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.Coordinator.HeartbeatInterval)
	assert.Equal(t, DefaultStreamDelay, cfg.Node.StreamDelay)
	assert.False(t, cfg.Coordinator.ExecEnabled, "EXEC must be opt-in")
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.Coordinator.ListenAddr)
}

func TestLoadParsesDurationsAndAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
coordinator:
  listen_addr: 127.0.0.1:7000
  heartbeat_interval: 5s
  heartbeat_grace: 30s
node:
  id: ss9
  stream_delay: 50ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Coordinator.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Coordinator.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.Coordinator.HeartbeatGrace)
	assert.Equal(t, 50*time.Millisecond, cfg.Node.StreamDelay)
	// Unspecified sections still get defaults.
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, DefaultControlTimeout, cfg.Coordinator.ControlTimeout)
}

func TestLoadSampleConfig(t *testing.T) {
	path := writeConfig(t, SampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ss1", cfg.Node.ID)
	assert.Equal(t, 9101, cfg.Node.ClientPort)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Run("bad log level", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = "LOUD"
		assert.Error(t, Validate(cfg))
	})

	t.Run("grace below interval", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Coordinator.HeartbeatInterval = time.Minute
		cfg.Coordinator.HeartbeatGrace = time.Second
		assert.Error(t, Validate(cfg))
	})

	t.Run("control port collides with client port", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Node.ControlPort = cfg.Node.ClientPort
		assert.Error(t, Validate(cfg))
	})
}

func TestValidateNode(t *testing.T) {
	good := NodeConfig{ID: "ss1", CoordinatorAddr: "127.0.0.1:9090", ClientPort: 9101}
	assert.NoError(t, ValidateNode(&good))

	bad := good
	bad.ID = ""
	assert.Error(t, ValidateNode(&bad))

	bad = good
	bad.ID = "a/b"
	assert.Error(t, ValidateNode(&bad))

	bad = good
	bad.ClientPort = 0
	assert.Error(t, ValidateNode(&bad))
}

func TestControlPortOrDefault(t *testing.T) {
	n := NodeConfig{ClientPort: 9101}
	assert.Equal(t, 10101, n.ControlPortOrDefault())

	n.ControlPort = 9555
	assert.Equal(t, 9555, n.ControlPortOrDefault())
}

func TestInitConfigToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))
	assert.Error(t, InitConfigToPath(path, false), "refuses to overwrite without force")
	assert.NoError(t, InitConfigToPath(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
}

func TestWatchReloadsOnRewrite(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: INFO\n")

	var reloads atomic.Int32
	var lastLevel atomic.Value
	stop, err := Watch(path, func(cfg *Config) {
		lastLevel.Store(cfg.Logging.Level)
		reloads.Add(1)
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: DEBUG\n"), 0o644))
	require.Eventually(t, func() bool {
		return reloads.Load() > 0
	}, 5*time.Second, 20*time.Millisecond, "rewrite did not trigger a reload")
	assert.Equal(t, "DEBUG", lastLevel.Load())
}

func TestWatchDropsInvalidRewrite(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: INFO\n")

	var reloads atomic.Int32
	stop, err := Watch(path, func(*Config) { reloads.Add(1) })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: LOUD\n"), 0o644))
	time.Sleep(3 * watchDebounce)
	assert.Zero(t, reloads.Load(), "invalid config must not reach the callback")
}
