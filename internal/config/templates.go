package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Signal Recorder Configuration

[server]
# Listen address for the webhook receiver
addr = ":5000"
read_timeout = "15s"
write_timeout = "15s"
shutdown_timeout = "10s"
# Maximum accepted request body
body_limit = "1M"

[signals]
# Zone the UTC webhook time is converted to: IANA name or fixed offset (UTC+5:30)
timezone = "Asia/Kolkata"

[store]
# Persistence backend: "sqlite" (recommended) or "csv"
backend = "sqlite"
# Leave empty to use signals.db / signals.csv in the config directory
path = ""

[logging]
# debug, info, warn, error
level = "info"
# "console" or "json" for stdout; the log file is always JSON
format = "console"
console = true
file = true
file_path = ""
max_size = 100
max_backups = 7
max_age = 30

[mirror]
# Bounded queue of pending snapshots; the oldest is dropped when full
queue_size = 64
# Per-attempt timeout for a single sink
timeout = "10s"
max_attempts = 3
initial_backoff = "500ms"
max_backoff = "10s"
# Skip a sink for breaker_cooldown after breaker_threshold failed deliveries in a row
breaker_threshold = 5
breaker_cooldown = "1m"

[mirror.webhook]
enabled = false
url = ""

[mirror.webhook.headers]
# Authorization = "Bearer ..."

[mirror.redis]
enabled = false
addr = "localhost:6379"
password = ""
db = 0
prefix = "signal-recorder"
ttl = "0s"

[mirror.file]
enabled = false
path = ""
`

// createTemplateConfig writes the default config.toml into configDir.
func createTemplateConfig(configDir, name string) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}

	return path, nil
}
