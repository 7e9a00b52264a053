package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	AutoSave AutoSaveConfig `yaml:"autosave"`
	History  HistoryConfig  `yaml:"history"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// CacheConfig contains client cache settings.
type CacheConfig struct {
	MaxEntries int      `yaml:"max_entries"`
	DefaultTTL Duration `yaml:"default_ttl"`
}

// AutoSaveConfig contains auto-save engine settings.
type AutoSaveConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Interval    Duration `yaml:"interval"`
	QuietWindow Duration `yaml:"quiet_window"`
	MaxRetries  int      `yaml:"max_retries"`
	RetryDelay  Duration `yaml:"retry_delay"`
	RecoveryTTL Duration `yaml:"recovery_ttl"`
}

// HistoryConfig contains undo/redo engine settings.
type HistoryConfig struct {
	MaxEntries  int      `yaml:"max_entries"`
	Retention   Duration `yaml:"retention"`
	GroupWindow Duration `yaml:"group_window"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("SCHEMADESK_CONFIG_PATH", "config/schemadesk.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/schemadesk.db",
		},
		Cache: CacheConfig{
			MaxEntries: 100,
			DefaultTTL: Duration(5 * time.Minute),
		},
		AutoSave: AutoSaveConfig{
			Enabled:     true,
			Interval:    Duration(30 * time.Second),
			QuietWindow: Duration(2 * time.Second),
			MaxRetries:  3,
			RetryDelay:  Duration(1 * time.Second),
			RecoveryTTL: Duration(1 * time.Hour),
		},
		History: HistoryConfig{
			MaxEntries:  50,
			Retention:   Duration(1 * time.Hour),
			GroupWindow: Duration(1 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("SCHEMADESK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SCHEMADESK_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SCHEMADESK_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SCHEMADESK_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("SCHEMADESK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth
	if v := os.Getenv("SCHEMADESK_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Cache
	if v := os.Getenv("SCHEMADESK_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxEntries = n
		}
	}
	if v := os.Getenv("SCHEMADESK_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DefaultTTL = Duration(d)
		}
	}

	// Auto-save
	if v := os.Getenv("SCHEMADESK_AUTOSAVE_ENABLED"); v != "" {
		cfg.AutoSave.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SCHEMADESK_AUTOSAVE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AutoSave.Interval = Duration(d)
		}
	}
	if v := os.Getenv("SCHEMADESK_AUTOSAVE_QUIET_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AutoSave.QuietWindow = Duration(d)
		}
	}
	if v := os.Getenv("SCHEMADESK_AUTOSAVE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AutoSave.MaxRetries = n
		}
	}
	if v := os.Getenv("SCHEMADESK_AUTOSAVE_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AutoSave.RetryDelay = Duration(d)
		}
	}
	if v := os.Getenv("SCHEMADESK_RECOVERY_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AutoSave.RecoveryTTL = Duration(d)
		}
	}

	// History
	if v := os.Getenv("SCHEMADESK_HISTORY_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxEntries = n
		}
	}
	if v := os.Getenv("SCHEMADESK_HISTORY_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.History.Retention = Duration(d)
		}
	}
	if v := os.Getenv("SCHEMADESK_HISTORY_GROUP_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.History.GroupWindow = Duration(d)
		}
	}

	// Log
	if v := os.Getenv("SCHEMADESK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SCHEMADESK_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (SCHEMADESK_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if os.Getenv("SCHEMADESK_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("SCHEMADESK_API_KEY is required")
	}
	if c.AutoSave.MaxRetries < 0 {
		return errors.New("autosave.max_retries must not be negative")
	}
	if c.History.MaxEntries < 1 {
		return errors.New("history.max_entries must be at least 1")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
