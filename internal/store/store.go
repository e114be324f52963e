// Package store persists the document in a single named slot of a
// local SQLite database.
//
// The store is deliberately tiny: one table, one row per slot, last
// write wins. Read it at startup, write it after every committed
// mutation. A failing store must never block editing — callers
// degrade to in-memory mode and surface a status indicator instead.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUnavailable indicates the local store could not be opened,
// read, or written.
var ErrUnavailable = errors.New("document store unavailable")

// DefaultSlot is the slot name used for the live document.
const DefaultSlot = "document"

// Store is a slot-addressed document store backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the store at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS documents (
			slot       TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", ErrUnavailable, err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the content of a slot. found is false when the slot has
// never been written.
func (s *Store) Load(slot string) (content string, found bool, err error) {
	row := s.db.QueryRow(`SELECT content FROM documents WHERE slot = ?`, slot)
	switch err := row.Scan(&content); {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("%w: load %q: %v", ErrUnavailable, slot, err)
	}
	return content, true, nil
}

// Save writes the content of a slot, replacing any previous value.
func (s *Store) Save(slot, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO documents (slot, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET content = excluded.content,
		                                updated_at = excluded.updated_at`,
		slot, content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: save %q: %v", ErrUnavailable, slot, err)
	}
	return nil
}

// Delete removes a slot. Deleting an absent slot is not an error.
func (s *Store) Delete(slot string) error {
	if _, err := s.db.Exec(`DELETE FROM documents WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("%w: delete %q: %v", ErrUnavailable, slot, err)
	}
	return nil
}
