// Package respcache persists conditional-GET response state per endpoint so
// a restarted client starts warm: the last body is rendered immediately and
// the stored validator turns the first poll into a cheap 304.
package respcache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	endpoint      TEXT PRIMARY KEY,
	body          BLOB NOT NULL,
	last_modified TEXT NOT NULL DEFAULT '',
	fetched_at    INTEGER NOT NULL
);
`

// Entry is one cached response.
type Entry struct {
	Body         []byte
	LastModified string // Last-Modified header value, "" when absent
	FetchedAt    time.Time
}

// Store is a SQLite-backed response cache keyed by endpoint string.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open response cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing response cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the cached entry for endpoint, reporting whether one exists.
func (s *Store) Get(endpoint string) (Entry, bool, error) {
	var entry Entry
	var fetchedAt int64
	err := s.db.QueryRow(
		`SELECT body, last_modified, fetched_at FROM responses WHERE endpoint = ?`,
		endpoint,
	).Scan(&entry.Body, &entry.LastModified, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache entry: %w", err)
	}
	entry.FetchedAt = time.Unix(fetchedAt, 0)
	return entry, true, nil
}

// Put stores (or replaces) the entry for endpoint.
func (s *Store) Put(endpoint string, entry Entry) error {
	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO responses (endpoint, body, last_modified, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   body = excluded.body,
		   last_modified = excluded.last_modified,
		   fetched_at = excluded.fetched_at`,
		endpoint, entry.Body, entry.LastModified, fetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for endpoint, if any.
func (s *Store) Delete(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM responses WHERE endpoint = ?`, endpoint)
	return err
}

// Prune removes entries fetched before cutoff and returns how many were
// removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM responses WHERE fetched_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every entry.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM responses`)
	return err
}
