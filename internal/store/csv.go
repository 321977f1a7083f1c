package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/models"
)

// CSVHeader is the column order of the tabular backend.
var CSVHeader = []string{"symbol", "event", "price", "time"}

// CSVStore implements SignalStore as a flat file with a header row.
// Append rewrites the whole file, so it holds mu for the full
// read-merge-write sequence.
type CSVStore struct {
	mu   sync.Mutex
	path string
}

// NewCSVStore returns a store for path. The file is created on first Append.
func NewCSVStore(path string) (*CSVStore, error) {
	if path == "" {
		return nil, apperrors.NewStoreError("open", "csv path is required", nil)
	}
	return &CSVStore{path: path}, nil
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Close is a no-op; the file is only open during an operation.
func (s *CSVStore) Close() error {
	return nil
}

// Append reads the existing records, adds record and atomically replaces the file.
func (s *CSVStore) Append(ctx context.Context, record models.SignalRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreError("append", "append cancelled", err)
	}

	records, err := s.load()
	if err != nil {
		return err
	}
	records = append(records, record)

	return s.replace(records)
}

// ReadAll returns the file contents in row order.
func (s *CSVStore) ReadAll(ctx context.Context) ([]models.SignalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CSVStore) load() ([]models.SignalRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make([]models.SignalRecord, 0), nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("read", "failed to read "+s.path, err)
	}
	return DecodeCSV(bytes.NewReader(data))
}

// replace writes records to a temp file in the same directory and renames it
// over the target, so readers never observe a half-written file.
func (s *CSVStore) replace(records []models.SignalRecord) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return apperrors.NewStoreError("append", "failed to create temp file in "+dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := EncodeCSV(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.NewStoreError("append", "failed to sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStoreError("append", "failed to close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return apperrors.NewStoreError("append", "failed to replace "+s.path, err)
	}
	return nil
}

// EncodeCSV writes records with the symbol,event,price,time header.
func EncodeCSV(w io.Writer, records []models.SignalRecord) error {
	if len(records) == 0 {
		if _, err := io.WriteString(w, "symbol,event,price,time\n"); err != nil {
			return apperrors.NewStoreError("encode", "failed to write header", err)
		}
		return nil
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return apperrors.NewSerializationError("encode", "failed to marshal signals", err)
	}
	return nil
}

// DecodeCSV parses a header-led CSV stream into records.
func DecodeCSV(r io.Reader) ([]models.SignalRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewStoreError("decode", "failed to read csv", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return make([]models.SignalRecord, 0), nil
	}
	if err := checkHeader(data); err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(data, '\n'); i < 0 || len(bytes.TrimSpace(data[i:])) == 0 {
		return make([]models.SignalRecord, 0), nil
	}

	records := make([]models.SignalRecord, 0)
	if err := gocsv.Unmarshal(bytes.NewReader(data), &records); err != nil {
		return nil, apperrors.NewSerializationError("decode", "failed to parse stored signals", err)
	}
	return records, nil
}

// checkHeader rejects files whose columns differ from CSVHeader; gocsv would
// otherwise silently zero the missing fields.
func checkHeader(data []byte) error {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	line = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("\xef\xbb\xbf")))
	cols := bytes.Split(line, []byte(","))
	if len(cols) != len(CSVHeader) {
		return apperrors.NewSerializationError("decode", "unexpected csv header "+string(line), nil)
	}
	for i, c := range cols {
		if string(bytes.TrimSpace(c)) != CSVHeader[i] {
			return apperrors.NewSerializationError("decode", "unexpected csv header "+string(line), nil)
		}
	}
	return nil
}
