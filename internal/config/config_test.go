package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtier/memtier/internal/config"
)

func TestLoadConfig_DefaultHostIsLocalhost(t *testing.T) {
	_ = os.Unsetenv("MEMTIER_HOST")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host,
		"Default host must be 127.0.0.1 for security")
}

func TestLoadConfig_CanOverrideHost(t *testing.T) {
	t.Setenv("MEMTIER_HOST", "0.0.0.0")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7474, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.SnapshotEngine)
	assert.False(t, cfg.Embedding.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Engine.CycleInterval)
	assert.Equal(t, 20, cfg.Session.MaxWorkingSetSize)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MEMTIER_PORT", "9090")
	t.Setenv("MEMTIER_CYCLE_INTERVAL", "90s")
	t.Setenv("MEMTIER_EMBEDDING_ENABLED", "yes")
	t.Setenv("MEMTIER_MAX_BATCH_SIZE", "25")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Engine.CycleInterval)
	assert.True(t, cfg.Embedding.Enabled)
	assert.Equal(t, 25, cfg.Engine.MaxBatchSize)
}

func TestLoadConfig_UnparseableEnvKeepsDefault(t *testing.T) {
	t.Setenv("MEMTIER_PORT", "not-a-port")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7474, cfg.Server.Port)
}

func TestLoadConfigFile_LayersFileUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memtier.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
engine:
  cycle_interval: 2m
  max_batch_size: 10
storage:
  snapshot_engine: none
`), 0o644))

	// Environment wins over the file.
	t.Setenv("MEMTIER_MAX_BATCH_SIZE", "5")

	cfg, err := config.LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Engine.CycleInterval)
	assert.Equal(t, "none", cfg.Storage.SnapshotEngine)
	assert.Equal(t, 5, cfg.Engine.MaxBatchSize)
	// Untouched keys keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadConfigFile_MissingFile(t *testing.T) {
	_, err := config.LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad_port", func(c *config.Config) { c.Server.Port = 0 }},
		{"bad_rate_limit", func(c *config.Config) { c.Server.RateLimitPerSecond = 0 }},
		{"unknown_engine", func(c *config.Config) { c.Storage.SnapshotEngine = "etched-stone" }},
		{"zero_interval", func(c *config.Config) { c.Engine.CycleInterval = 0 }},
		{"embedding_without_url", func(c *config.Config) {
			c.Embedding.Enabled = true
			c.Embedding.URL = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.LoadConfig()
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
