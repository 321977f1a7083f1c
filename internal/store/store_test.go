package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/models"
)

type backendCase struct {
	name string
	open func(t *testing.T) SignalStore
}

func backends() []backendCase {
	return []backendCase{
		{"sqlite", func(t *testing.T) SignalStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "signals.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			return s
		}},
		{"csv", func(t *testing.T) SignalStore {
			s, err := NewCSVStore(filepath.Join(t.TempDir(), "signals.csv"))
			if err != nil {
				t.Fatalf("NewCSVStore: %v", err)
			}
			return s
		}},
	}
}

func sampleRecord(i int) models.SignalRecord {
	return models.SignalRecord{
		Symbol: fmt.Sprintf("SYM%d", i),
		Event:  []string{"buy", "sell"}[i%2],
		Price:  100.25 + float64(i),
		Time:   fmt.Sprintf("14-07-2025 21:%02d:%02d", (i/60)%60, i%60),
	}
}

func TestStore_EmptyReadAll(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			got, err := s.ReadAll(context.Background())
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("ReadAll on empty store = %#v, want empty slice", got)
			}
		})
	}
}

func TestStore_FirstAppendCreatesStore(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			rec := models.SignalRecord{Symbol: "BTCUSD", Event: "buy", Price: 65000.5, Time: "14-07-2025 21:00:45"}
			if err := s.Append(context.Background(), rec); err != nil {
				t.Fatalf("Append: %v", err)
			}

			got, err := s.ReadAll(context.Background())
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if len(got) != 1 || got[0] != rec {
				t.Errorf("ReadAll = %+v, want [%+v]", got, rec)
			}
		})
	}
}

func TestStore_RoundTripAndIdempotentRead(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			ctx := context.Background()

			var want []models.SignalRecord
			for i := 0; i < 25; i++ {
				rec := sampleRecord(i)
				if err := s.Append(ctx, rec); err != nil {
					t.Fatalf("Append %d: %v", i, err)
				}
				want = append(want, rec)
			}

			first, err := s.ReadAll(ctx)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !reflect.DeepEqual(first, want) {
				t.Fatalf("ReadAll mismatch:\n got %+v\nwant %+v", first, want)
			}

			second, err := s.ReadAll(ctx)
			if err != nil {
				t.Fatalf("second ReadAll: %v", err)
			}
			if !reflect.DeepEqual(first, second) {
				t.Errorf("ReadAll not idempotent")
			}
		})
	}
}

func TestStore_RejectsPartialRecords(t *testing.T) {
	partial := []models.SignalRecord{
		{Event: "buy", Price: 1, Time: "14-07-2025 21:00:45"},
		{Symbol: "BTCUSD", Price: 1, Time: "14-07-2025 21:00:45"},
		{Symbol: "BTCUSD", Event: "buy", Price: 1},
	}

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			ctx := context.Background()

			for _, rec := range partial {
				err := s.Append(ctx, rec)
				if !apperrors.Is(err, apperrors.ErrParse) {
					t.Errorf("Append(%+v) error = %v, want ParseError", rec, err)
				}
			}

			got, _ := s.ReadAll(ctx)
			if len(got) != 0 {
				t.Errorf("partial records were persisted: %+v", got)
			}
		})
	}
}

func TestStore_ConcurrentAppendsLoseNothing(t *testing.T) {
	const n = 40

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			ctx := context.Background()

			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if err := s.Append(ctx, sampleRecord(i)); err != nil {
						errs <- err
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("concurrent Append: %v", err)
			}

			got, err := s.ReadAll(ctx)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if len(got) != n {
				t.Fatalf("got %d records, want %d", len(got), n)
			}
			seen := make(map[string]bool, n)
			for _, r := range got {
				seen[r.Symbol] = true
			}
			for i := 0; i < n; i++ {
				if !seen[fmt.Sprintf("SYM%d", i)] {
					t.Errorf("record SYM%d lost", i)
				}
			}
		})
	}
}

func TestCSVStore_LayoutAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	s, _ := NewCSVStore(path)

	rec := models.SignalRecord{Symbol: "BTCUSD", Event: "buy", Price: 65000.5, Time: "14-07-2025 21:00:45"}
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("file has %d lines, want 2:\n%s", len(lines), data)
	}
	if lines[0] != "symbol,event,price,time" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "BTCUSD,buy,65000.5,14-07-2025 21:00:45" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestCSVStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	if err := os.WriteFile(path, []byte("symbol,event,price,time\nBTCUSD,buy,not-a-number,x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := NewCSVStore(path)

	if _, err := s.ReadAll(context.Background()); !apperrors.Is(err, apperrors.ErrSerialization) {
		t.Errorf("ReadAll error = %v, want SerializationError", err)
	}

	err := s.Append(context.Background(), sampleRecord(1))
	if !apperrors.Is(err, apperrors.ErrSerialization) {
		t.Errorf("Append error = %v, want SerializationError", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "not-a-number") || strings.Contains(string(data), "SYM1") {
		t.Errorf("corrupt file was modified:\n%s", data)
	}
}

func TestCSVStore_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	if err := os.WriteFile(path, []byte("ticker,side,qty\nBTC,buy,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := NewCSVStore(path)

	if _, err := s.ReadAll(context.Background()); apperrors.KindOf(err) != apperrors.KindSerialization {
		t.Errorf("ReadAll error = %v, want SerializationError", err)
	}
}

func TestCSVStore_MissingDirectory(t *testing.T) {
	s, _ := NewCSVStore(filepath.Join(t.TempDir(), "missing", "signals.csv"))

	err := s.Append(context.Background(), sampleRecord(0))
	if apperrors.KindOf(err) != apperrors.KindStore {
		t.Errorf("Append error = %v, want StoreUnavailable", err)
	}
}

func TestSQLiteStore_MissingDirectory(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missing", "signals.db"))
	if !apperrors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("NewSQLiteStore error = %v, want StoreUnavailable", err)
	}
}

func TestSQLiteStore_ReadBeforeAppendLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	got, err := s.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ReadAll = %#v, want empty slice", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("database file exists after read-only use: %v", err)
	}

	if err := s.Append(context.Background(), sampleRecord(0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file missing after Append: %v", err)
	}
}

func TestSQLiteStore_ReopenExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Append(context.Background(), sampleRecord(3)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || got[0] != sampleRecord(3) {
		t.Errorf("ReadAll after reopen = %+v", got)
	}
}

func TestOpen_SelectsBackend(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Config{Backend: BackendCSV, Path: filepath.Join(dir, "a.csv")})
	if err != nil {
		t.Fatalf("Open csv: %v", err)
	}
	if _, ok := s.(*CSVStore); !ok {
		t.Errorf("Open csv returned %T", s)
	}

	s, err = Open(Config{Backend: "SQLite", Path: filepath.Join(dir, "a.db")})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("Open sqlite returned %T", s)
	}
	s.Close()

	if _, err := Open(Config{Backend: "xlsx", Path: filepath.Join(dir, "a.xlsx")}); err == nil {
		t.Error("Open with unknown backend should fail")
	}
}

func TestEncodeDecodeCSV_Empty(t *testing.T) {
	var sb strings.Builder
	if err := EncodeCSV(&sb, nil); err != nil {
		t.Fatalf("EncodeCSV: %v", err)
	}
	if sb.String() != "symbol,event,price,time\n" {
		t.Errorf("EncodeCSV(nil) = %q", sb.String())
	}

	got, err := DecodeCSV(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("DecodeCSV header-only = %+v", got)
	}
}
