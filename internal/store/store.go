// Package store persists learner accounts in SQLite. All access goes
// through a single-writer Queue.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	_ "modernc.org/sqlite"
)

// Store owns the database handle and its repositories.
type Store struct {
	db    *sql.DB
	queue *Queue

	Accounts *AccountRepository
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s, err := New(db, NewQueue(db))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("Opened store", "path", path)
	return s, nil
}

// New wraps an open database, creating the schema.
func New(db *sql.DB, queue *Queue) (*Store, error) {
	db.SetMaxOpenConns(1)
	if err := InitSchema(db); err != nil {
		queue.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{
		db:       db,
		queue:    queue,
		Accounts: NewAccountRepository(queue),
	}, nil
}

// Close drains the queue and closes the database.
func (s *Store) Close() error {
	s.queue.Close()
	return s.db.Close()
}
