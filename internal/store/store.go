// Package store provides append-only persistence for signal records.
package store

import (
	"context"
	"fmt"
	"strings"

	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/models"
)

// SignalStore defines the append-only record keeper.
type SignalStore interface {
	// Append durably adds one record to the end of the store.
	Append(ctx context.Context, record models.SignalRecord) error
	// ReadAll returns every record in insertion order, or an empty slice
	// when nothing has been written yet.
	ReadAll(ctx context.Context) ([]models.SignalRecord, error)
	Close() error
}

// Backend names a persistence medium.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendCSV    Backend = "csv"
)

// Config selects and locates the backend for one deployment.
type Config struct {
	Backend Backend
	Path    string
}

// Open creates the configured store.
func Open(cfg Config) (SignalStore, error) {
	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case BackendSQLite, "":
		return NewSQLiteStore(cfg.Path)
	case BackendCSV:
		return NewCSVStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q (must be 'sqlite' or 'csv')", cfg.Backend)
	}
}

// validateRecord rejects partial records before anything is written.
func validateRecord(r models.SignalRecord) error {
	switch {
	case strings.TrimSpace(r.Symbol) == "":
		return apperrors.NewParseError("append", "symbol is required", nil)
	case strings.TrimSpace(r.Event) == "":
		return apperrors.NewParseError("append", "event is required", nil)
	case strings.TrimSpace(r.Time) == "":
		return apperrors.NewParseError("append", "time is required", nil)
	}
	return nil
}
