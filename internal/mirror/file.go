package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"signal-recorder/internal/store"
)

// FileConfig holds the local copy target, typically a synced folder.
type FileConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// FileSink writes the snapshot as CSV to a path, replacing it atomically.
type FileSink struct {
	path string
}

// NewFileSink creates a new FileSink.
func NewFileSink(cfg FileConfig) *FileSink {
	return &FileSink{path: cfg.Path}
}

// Name returns the name of the sink.
func (f *FileSink) Name() string {
	return "file"
}

// Mirror writes the snapshot.
func (f *FileSink) Mirror(ctx context.Context, snapshot Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := store.EncodeCSV(tmp, snapshot.Records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}
