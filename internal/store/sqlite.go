package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pagebrain/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists values in a single kv table.
//
// Driver "sqlite3" is mattn/go-sqlite3 (cgo); driver "sqlite" is the pure-Go
// modernc.org/sqlite for builds without a C toolchain. Both share the schema.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// OpenSQLite opens (or creates) the database at path using driver.
func OpenSQLite(driver, path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenSQLite")
	defer timer.Stop()

	if driver != "sqlite3" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported sqlite driver: %s", driver)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("Opened %s store at %s", driver, path)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) Get(ctx context.Context, name string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	logging.StoreDebug("Stored %s (%d bytes)", name, len(raw))
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Open returns the KV for a configured driver along with its close function.
func Open(driver, path string) (KV, func() error, error) {
	if driver == "memory" {
		return NewMemoryStore(), func() error { return nil }, nil
	}
	s, err := OpenSQLite(driver, path)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}
