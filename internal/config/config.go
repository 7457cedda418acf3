// Package config provides configuration management for memtier.
// It loads settings from environment variables with the MEMTIER_ prefix
// and provides sensible defaults for all configuration options.
//
// An optional YAML file may be layered between the defaults and the
// environment: defaults < file < environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the memtier daemon.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Engine    EngineConfig    `yaml:"engine"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 7474)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)

	// RateLimitPerSecond caps API requests per client second (default: 20).
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	// RateLimitBurst is the rate limiter's burst allowance (default: 40).
	RateLimitBurst int `yaml:"rate_limit_burst"`
}

// StorageConfig contains snapshot and embedding store configuration.
type StorageConfig struct {
	SnapshotEngine string `yaml:"snapshot_engine"` // Snapshot engine: sqlite, none (default: sqlite)
	DataPath       string `yaml:"data_path"`       // Path to data directory (default: ./data)

	// PostgresDSN enables the pgvector-backed embedding index when set.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EmbeddingConfig contains the embedding service configuration. The service
// is optional; when disabled, context search is lexical only.
type EmbeddingConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable embedding-based ranking (default: false)
	URL     string `yaml:"url"`     // Embedding API URL (default: http://localhost:11434)
	Model   string `yaml:"model"`   // Embedding model name (default: nomic-embed-text)

	// TimeoutSeconds bounds a single embedding request (default: 10).
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// EngineConfig contains consolidation engine tunables. Zero values fall back
// to the engine's defaults.
type EngineConfig struct {
	CycleInterval     time.Duration `yaml:"cycle_interval"`      // Automatic cycle period (default: 5m)
	MergeWindowHours  int           `yaml:"merge_window_hours"`  // Episode merge window (default: 24)
	MaxBatchSize      int           `yaml:"max_batch_size"`      // Per-cycle promotion cap, 0 = unlimited
	InteractionMinAge time.Duration `yaml:"interaction_min_age"` // Session harvest age gate (default: 10m)
}

// SessionConfig contains working-session capacity bounds.
type SessionConfig struct {
	MaxWorkingSetSize int `yaml:"max_working_set_size"` // Working set cap (default: 20)
	InteractionLogCap int `yaml:"interaction_log_cap"`  // Interaction log cap (default: 50)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the MEMTIER_ prefix. When
// MEMTIER_CONFIG_FILE names a YAML file, its values are layered between the
// defaults and the environment.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("MEMTIER_CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile loads configuration from defaults, the named YAML file, and
// the environment, in that order of precedence.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if err := loadFile(cfg, path); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerSecond <= 0 {
		return fmt.Errorf("config: rate limit must be > 0, got %f", c.Server.RateLimitPerSecond)
	}
	switch c.Storage.SnapshotEngine {
	case "sqlite", "none":
	default:
		return fmt.Errorf("config: unknown snapshot engine %q", c.Storage.SnapshotEngine)
	}
	if c.Engine.CycleInterval <= 0 {
		return fmt.Errorf("config: cycle interval must be > 0, got %v", c.Engine.CycleInterval)
	}
	if c.Embedding.Enabled && c.Embedding.URL == "" {
		return fmt.Errorf("config: embedding enabled but no URL configured")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               7474,
			Host:               "127.0.0.1",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
		},
		Storage: StorageConfig{
			SnapshotEngine: "sqlite",
			DataPath:       "./data",
		},
		Embedding: EmbeddingConfig{
			Enabled:        false,
			URL:            "http://localhost:11434",
			Model:          "nomic-embed-text",
			TimeoutSeconds: 10,
		},
		Engine: EngineConfig{
			CycleInterval:     5 * time.Minute,
			MergeWindowHours:  24,
			MaxBatchSize:      0,
			InteractionMinAge: 10 * time.Minute,
		},
		Session: SessionConfig{
			MaxWorkingSetSize: 20,
			InteractionLogCap: 50,
		},
	}
}

// loadFile layers values from a YAML file over cfg. Absent keys keep their
// current values.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg with any MEMTIER_ environment variables that are set.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("MEMTIER_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("MEMTIER_HOST", cfg.Server.Host)
	cfg.Server.RateLimitPerSecond = getEnvFloat("MEMTIER_RATE_LIMIT", cfg.Server.RateLimitPerSecond)
	cfg.Server.RateLimitBurst = getEnvInt("MEMTIER_RATE_LIMIT_BURST", cfg.Server.RateLimitBurst)

	cfg.Storage.SnapshotEngine = getEnv("MEMTIER_SNAPSHOT_ENGINE", cfg.Storage.SnapshotEngine)
	cfg.Storage.DataPath = getEnv("MEMTIER_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("MEMTIER_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Embedding.Enabled = getEnvBool("MEMTIER_EMBEDDING_ENABLED", cfg.Embedding.Enabled)
	cfg.Embedding.URL = getEnv("MEMTIER_EMBEDDING_URL", cfg.Embedding.URL)
	cfg.Embedding.Model = getEnv("MEMTIER_EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.TimeoutSeconds = getEnvInt("MEMTIER_EMBEDDING_TIMEOUT", cfg.Embedding.TimeoutSeconds)

	cfg.Engine.CycleInterval = getEnvDuration("MEMTIER_CYCLE_INTERVAL", cfg.Engine.CycleInterval)
	cfg.Engine.MergeWindowHours = getEnvInt("MEMTIER_MERGE_WINDOW_HOURS", cfg.Engine.MergeWindowHours)
	cfg.Engine.MaxBatchSize = getEnvInt("MEMTIER_MAX_BATCH_SIZE", cfg.Engine.MaxBatchSize)
	cfg.Engine.InteractionMinAge = getEnvDuration("MEMTIER_INTERACTION_MIN_AGE", cfg.Engine.InteractionMinAge)

	cfg.Session.MaxWorkingSetSize = getEnvInt("MEMTIER_WORKING_SET_SIZE", cfg.Session.MaxWorkingSetSize)
	cfg.Session.InteractionLogCap = getEnvInt("MEMTIER_INTERACTION_LOG_CAP", cfg.Session.InteractionLogCap)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the variable exists but cannot be parsed, the default wins.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" as true and "false", "0", "no" as
// false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "5m") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
