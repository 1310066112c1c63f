package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version.
//
//	0: tables from schema.sql only
//	1: messages(created_at, seq) index
const schemaVersion = 1

// Store is the archive index kept next to the JSON records.
type Store struct {
	db *sql.DB
}

// Open opens the index at path, creating it when missing, and brings its
// schema up to date. Opening an existing index again is harmless.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return err
	}
	// One connection: every snapshot is a single write transaction.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return migrate(db)
}

// Close releases the index. A zero Store closes cleanly.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewRunID returns a fresh run identifier. UUIDv7 ids sort by creation time.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func migrate(db *sql.DB) error {
	var from int
	if err := db.QueryRow("PRAGMA user_version").Scan(&from); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if from >= schemaVersion {
		return nil
	}

	steps := []string{
		1: `CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at, seq)`,
	}
	for v := from + 1; v <= schemaVersion; v++ {
		if _, err := db.Exec(steps[v]); err != nil {
			return fmt.Errorf("migrate schema to v%d: %w", v, err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// pragma reads a single pragma value.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", err
	}
	return value, nil
}
