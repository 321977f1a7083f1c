package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "signal-recorder/internal/errors"
)

func TestLoad_CreatesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template not written: %v", err)
	}
	if cfg.Server.Addr != ":5000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Signals.Timezone != "Asia/Kolkata" {
		t.Errorf("timezone = %q", cfg.Signals.Timezone)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != filepath.Join(dir, "signals.db") {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Mirror.Timeout != 10*time.Second || cfg.Mirror.QueueSize != 64 {
		t.Errorf("mirror = %+v", cfg.Mirror.Config)
	}
	if cfg.Logging.FilePath != filepath.Join(dir, "logs", "recorder.log") {
		t.Errorf("log path = %q", cfg.Logging.FilePath)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[server]
addr = "127.0.0.1:8080"

[signals]
timezone = "UTC+5:30"

[store]
backend = "CSV"

[mirror]
timeout = "3s"

[mirror.webhook]
enabled = true
url = "https://example.com/upload"

[mirror.webhook.headers]
Authorization = "Bearer abc"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" || cfg.Signals.Timezone != "UTC+5:30" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Store.Backend != "csv" || cfg.Store.Path != filepath.Join(dir, "signals.csv") {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Mirror.Timeout != 3*time.Second || cfg.Mirror.MaxAttempts != 3 {
		t.Errorf("mirror = %+v", cfg.Mirror.Config)
	}
	if !cfg.Mirror.Webhook.Enabled || cfg.Mirror.Webhook.URL != "https://example.com/upload" {
		t.Errorf("webhook = %+v", cfg.Mirror.Webhook)
	}
	if len(cfg.Mirror.Webhook.Headers) != 1 {
		t.Errorf("headers = %v", cfg.Mirror.Webhook.Headers)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown default not applied: %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RECORDER_TIMEZONE", "Europe/London")
	t.Setenv("RECORDER_STORE_PATH", filepath.Join(dir, "custom.db"))
	t.Setenv("PORT", "9000")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Signals.Timezone != "Europe/London" {
		t.Errorf("timezone = %q", cfg.Signals.Timezone)
	}
	if cfg.Store.Path != filepath.Join(dir, "custom.db") {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:  ServerConfig{Addr: ":5000"},
			Signals: SignalsConfig{Timezone: "Asia/Kolkata"},
			Store:   StoreConfig{Backend: "sqlite", Path: "x.db"},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := map[string]func(c *Config){
		"bad timezone":        func(c *Config) { c.Signals.Timezone = "Nowhere/City" },
		"bad backend":         func(c *Config) { c.Store.Backend = "xlsx" },
		"empty addr":          func(c *Config) { c.Server.Addr = "" },
		"webhook without url": func(c *Config) { c.Mirror.Webhook.Enabled = true },
		"file without path":   func(c *Config) { c.Mirror.File.Enabled = true },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			err := c.Validate()
			if !apperrors.Is(err, apperrors.ErrConfigInvalid) {
				t.Errorf("Validate() = %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestLoad_LoggingDefaultsWithoutSection(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[signals]\ntimezone = \"UTC\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.Console || cfg.Logging.MaxSize != 100 {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Logging.FilePath != filepath.Join(dir, "logs", "recorder.log") {
		t.Errorf("log path = %q", cfg.Logging.FilePath)
	}
}
