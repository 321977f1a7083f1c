package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/models"
)

// SQLiteStore implements SignalStore on a single auto-incrementing table.
// Each append is one INSERT, so SQLite's own locking serializes writers.
// The database file is created by the first Append; reads before that see an
// empty store and leave the disk untouched.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu    sync.Mutex
	ready bool
}

// NewSQLiteStore opens the database at dbPath. The parent directory must exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, apperrors.NewStoreError("open", "sqlite path is required", nil)
	}
	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		return nil, apperrors.NewStoreError("open", "database directory is not accessible", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, apperrors.NewStoreError("open", "failed to open database", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, path: dbPath}
	if _, err := s.ensureSchema(false); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// ensureSchema initializes the table once the database file exists, or
// unconditionally when create is set. It reports whether the store is usable.
func (s *SQLiteStore) ensureSchema(create bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return true, nil
	}
	if !create {
		if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
	}
	if err := s.initSchema(); err != nil {
		return false, apperrors.NewStoreError("open", fmt.Sprintf("failed to initialize schema at %s", s.path), err)
	}
	s.ready = true
	return true, nil
}

// initSchema creates the signals table.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		event TEXT NOT NULL,
		price REAL NOT NULL,
		time TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append inserts one row.
func (s *SQLiteStore) Append(ctx context.Context, record models.SignalRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if _, err := s.ensureSchema(true); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (symbol, event, price, time)
		VALUES (?, ?, ?, ?)
	`, record.Symbol, record.Event, record.Price, record.Time)
	if err != nil {
		return apperrors.NewStoreError("append", "failed to insert signal", err)
	}
	return nil
}

// ReadAll scans the table in id order.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]models.SignalRecord, error) {
	ok, err := s.ensureSchema(false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return make([]models.SignalRecord, 0), nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, event, price, time
		FROM signals
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, apperrors.NewStoreError("read", "failed to query signals", err)
	}
	defer rows.Close()

	records := make([]models.SignalRecord, 0)
	for rows.Next() {
		var r models.SignalRecord
		if err := rows.Scan(&r.Symbol, &r.Event, &r.Price, &r.Time); err != nil {
			return nil, apperrors.NewSerializationError("read", "failed to scan signal", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("read", "error iterating signals", err)
	}

	return records, nil
}
