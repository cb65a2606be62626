package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - empty database
// 1 - shadow_logs and checkpoint
const currentSchemaVersion = 1

// Store provides durable storage for shadow events.
// Uses SQLite with WAL mode for concurrent read access: writes go through a
// single connection, reads through a separate read-only pool so a long
// query never waits for a commit and the other way round.
type Store struct {
	db      *sql.DB
	reader  *sql.DB
	locks   *BlockLocks
	now     func() time.Time
	metrics *metrics
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the wall clock used for created_at/updated_at.
// Those columns are diagnostic only and never used for ordering.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithRegisterer registers the store's collectors on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.metrics = newMetrics(reg)
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// Open refuses a database written by a newer schema version.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	reader, err := openReader(path, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:      db,
		reader:  reader,
		locks:   NewBlockLocks(),
		now:     time.Now,
		metrics: newMetrics(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// maxReaders bounds the read-only pool.
const maxReaders = 4

// openReader opens the read-only pool for path. An in-memory database is
// private to its connection, so there the writer serves reads too.
func openReader(path string, writer *sql.DB) (*sql.DB, error) {
	dsn, ok := readerDSN(path)
	if !ok {
		return writer, nil
	}
	reader, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open read pool: %w", err)
	}
	if err := reader.Ping(); err != nil {
		reader.Close()
		return nil, fmt.Errorf("connect read pool: %w", err)
	}
	reader.SetMaxOpenConns(maxReaders)
	reader.SetMaxIdleConns(maxReaders)
	return reader, nil
}

// readerDSN returns the read-only DSN for path, or false when path names an
// in-memory database.
func readerDSN(path string) (string, bool) {
	if path == "" || path == ":memory:" || strings.Contains(path, "mode=memory") {
		return "", false
	}
	const params = "mode=ro&_busy_timeout=5000"
	if strings.HasPrefix(path, "file:") {
		if strings.Contains(path, "?") {
			return path + "&" + params, true
		}
		return path + "?" + params, true
	}
	return "file:" + path + "?" + params, true
}

// Close closes the database connections.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	var rerr error
	if s.reader != nil && s.reader != s.db {
		rerr = s.reader.Close()
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	return rerr
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the version.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
