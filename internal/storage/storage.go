// Package storage provides a SQLite-backed cache of ephemeris samples.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/skyfeed/internal/models"
	_ "modernc.org/sqlite"
)

// Quantity is the kind of value stored for a body and instant.
type Quantity string

const (
	Longitude Quantity = "longitude"
	Velocity  Quantity = "velocity"
)

// Storage wraps a SQLite database holding oracle samples.
type Storage struct {
	db         *sql.DB
	maxSamples int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/skyfeed/samples.db.
// maxSamples <= 0 disables rotation.
func New(maxSamples int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "skyfeed", "samples.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxSamples: maxSamples}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS samples (
			body        TEXT NOT NULL,
			quantity    TEXT NOT NULL,
			at          INTEGER NOT NULL,
			value       REAL NOT NULL,
			created_at  INTEGER NOT NULL,
			PRIMARY KEY (body, quantity, at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_created_at ON samples(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the cached value and whether it was present.
func (s *Storage) Get(body models.Body, q Quantity, at time.Time) (float64, bool, error) {
	var v float64
	err := s.db.QueryRow(
		`SELECT value FROM samples WHERE body = ? AND quantity = ? AND at = ?`,
		string(body), string(q), at.UnixNano(),
	).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get sample: %w", err)
	}
	return v, true, nil
}

// Put stores a sample, replacing any previous value for the same key.
func (s *Storage) Put(body models.Body, q Quantity, at time.Time, v float64) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO samples (body, quantity, at, value, created_at)
		VALUES (?,?,?,?,?)`,
		string(body), string(q), at.UnixNano(), v, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to put sample: %w", err)
	}
	return nil
}

// Count returns the number of cached samples.
func (s *Storage) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return n, nil
}

// Rotate keeps at most maxSamples most recently written samples.
func (s *Storage) Rotate() error {
	if s.maxSamples <= 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		DELETE FROM samples WHERE rowid NOT IN (
			SELECT rowid FROM samples ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, s.maxSamples); err != nil {
		return fmt.Errorf("failed to rotate samples: %w", err)
	}
	return tx.Commit()
}

// Clear removes every cached sample.
func (s *Storage) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM samples`); err != nil {
		return fmt.Errorf("failed to clear samples: %w", err)
	}
	return nil
}
