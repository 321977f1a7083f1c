// Package logging provides structured logging for the recorder.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"signal-recorder/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is "console" for human-readable output or "json" for one
	// object per line.
	Format     string `mapstructure:"format"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Format:     "console",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "signal-recorder", "logs", "recorder.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

var levelLabels = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
}

// NewLoggerWithConfig builds a logger writing to stdout and, when enabled, a
// size-rotated file. The file always receives JSON.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg LogConfig, stdout io.Writer) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		if strings.EqualFold(cfg.Format, "json") {
			writers = append(writers, stdout)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        stdout,
				TimeFormat: time.RFC3339,
				FormatLevel: func(i interface{}) string {
					if ll, ok := i.(string); ok {
						if label, ok := levelLabels[ll]; ok {
							return label
						}
						return ll
					}
					return "???"
				},
			})
		}
	}

	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Str("service", "signal-recorder").
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

type ctxKey struct{}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext retrieves the logger from context, or a disabled logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithRequestID tags logger with an HTTP request ID.
func WithRequestID(logger zerolog.Logger, requestID string) zerolog.Logger {
	return logger.With().Str("request_id", requestID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogSignal logs a persisted signal.
func LogSignal(logger zerolog.Logger, record models.SignalRecord) {
	logger.Info().
		Str("event", "signal").
		Str("symbol", record.Symbol).
		Str("signal", record.Event).
		Float64("price", record.Price).
		Str("time", record.Time).
		Msg("Received webhook signal")
}

// LogMirror logs the outcome of one mirror delivery. Failures are warnings,
// successes debug.
func LogMirror(logger zerolog.Logger, sink string, records int, duration time.Duration, err error) {
	var e *zerolog.Event
	if err != nil {
		e = logger.Warn().Err(err)
	} else {
		e = logger.Debug()
	}
	e = e.Str("event", "mirror").
		Str("sink", sink).
		Int("records", records).
		Dur("duration", duration)

	if err != nil {
		e.Msg("Mirror delivery failed")
		return
	}
	e.Msg("Mirror delivery completed")
}
