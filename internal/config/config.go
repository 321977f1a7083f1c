// Package config provides configuration management for the signal recorder.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"

	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/logging"
	"signal-recorder/internal/mirror"
	"signal-recorder/internal/normalize"
	"signal-recorder/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig      `mapstructure:"server"`
	Signals SignalsConfig     `mapstructure:"signals"`
	Store   StoreConfig       `mapstructure:"store"`
	Logging logging.LogConfig `mapstructure:"logging"`
	Mirror  mirror.Settings   `mapstructure:"mirror"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" default:":5000"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"10s"`
	BodyLimit       string        `mapstructure:"body_limit" default:"1M"`
}

// SignalsConfig holds normalization settings.
type SignalsConfig struct {
	Timezone string `mapstructure:"timezone" default:"Asia/Kolkata"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Backend string `mapstructure:"backend" default:"sqlite"` // "sqlite", "csv"
	Path    string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/signal-recorder"
	}
	return filepath.Join(home, ".config", "signal-recorder")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by the template before loading.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir, Logging: logging.DefaultLogConfig()}
	// Log file follows the config directory unless set explicitly.
	cfg.Logging.FilePath = ""

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Finalize resolves derived paths and validates. Call it again after
// applying command-line overrides.
func (c *Config) Finalize() error {
	c.resolvePaths()
	return c.Validate()
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		path, err := createTemplateConfig(configDir, name)
		if err != nil {
			return err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECORDER_ADDR"); v != "" {
		cfg.Server.Addr = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("RECORDER_TIMEZONE"); v != "" {
		cfg.Signals.Timezone = v
	}
	if v := os.Getenv("RECORDER_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("RECORDER_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("RECORDER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RECORDER_MIRROR_WEBHOOK_URL"); v != "" {
		cfg.Mirror.Webhook.URL = v
		cfg.Mirror.Webhook.Enabled = true
	}
	if v := os.Getenv("RECORDER_MIRROR_REDIS_ADDR"); v != "" {
		cfg.Mirror.Redis.Addr = v
		cfg.Mirror.Redis.Enabled = true
	}
}

// resolvePaths fills empty file locations relative to the config directory.
func (c *Config) resolvePaths() {
	c.Store.Backend = strings.ToLower(c.Store.Backend)
	if c.Store.Path == "" {
		name := "signals.db"
		if c.Store.Backend == string(store.BackendCSV) {
			name = "signals.csv"
		}
		c.Store.Path = filepath.Join(c.Dir, name)
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Dir, "logs", "recorder.log")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "server.addr must not be empty")
	}

	if _, err := normalize.LoadZone(c.Signals.Timezone); err != nil {
		return apperrors.Wrapf(apperrors.ErrConfigInvalid, "signals.timezone %q", c.Signals.Timezone)
	}

	switch store.Backend(strings.ToLower(c.Store.Backend)) {
	case store.BackendSQLite, store.BackendCSV:
	default:
		return apperrors.Wrapf(apperrors.ErrConfigInvalid, "invalid store backend: %s (must be 'sqlite' or 'csv')", c.Store.Backend)
	}

	if c.Mirror.Webhook.Enabled && c.Mirror.Webhook.URL == "" {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "mirror.webhook.url is required when the webhook mirror is enabled")
	}
	if c.Mirror.Redis.Enabled && c.Mirror.Redis.Addr == "" {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "mirror.redis.addr is required when the redis mirror is enabled")
	}
	if c.Mirror.File.Enabled && c.Mirror.File.Path == "" {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "mirror.file.path is required when the file mirror is enabled")
	}

	return nil
}

// StoreOptions returns the store settings in the store package's terms.
func (c *Config) StoreOptions() store.Config {
	return store.Config{
		Backend: store.Backend(c.Store.Backend),
		Path:    c.Store.Path,
	}
}

// Timezone returns the configured target zone.
func (c *Config) Timezone() string {
	return c.Signals.Timezone
}
