// Package cache keeps a manifest of downloaded source files in SQLite.
//
// Each entry records where a URL was saved, the validators the server sent
// (ETag, Last-Modified) and an xxh3 checksum of the file as written, so a
// later run can issue a conditional request and detect a tampered copy.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Lookup when the URL has no entry.
var ErrNotFound = errors.New("cache: entry not found")

// Entry describes one cached download.
type Entry struct {
	URL          string
	Path         string
	ETag         string
	LastModified string
	Size         int64
	Checksum     uint64
	FetchedAt    time.Time
}

// Repository is a SQLite-backed manifest.
type Repository struct {
	db *sql.DB
}

const schema = `CREATE TABLE IF NOT EXISTS downloads (
	url           TEXT PRIMARY KEY,
	path          TEXT NOT NULL,
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	size          INTEGER NOT NULL,
	checksum      TEXT NOT NULL,
	fetched_at    INTEGER NOT NULL
)`

// Open connects to the manifest at dsn, creating the table if needed, and
// returns the Repository plus a close function.
//
// dsn is handed to the modernc driver as-is, e.g. "cache/manifest.db" or
// "file::memory:?cache=shared".
func Open(ctx context.Context, dsn string) (*Repository, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("cache: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: open: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("cache: create schema: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Lookup returns the entry recorded for url, or ErrNotFound.
func (r *Repository) Lookup(ctx context.Context, url string) (Entry, error) {
	const q = `SELECT url, path, etag, last_modified, size, checksum, fetched_at
		FROM downloads WHERE url = ?`

	var (
		e       Entry
		sum     string
		fetched int64
	)
	err := r.db.QueryRowContext(ctx, q, url).
		Scan(&e.URL, &e.Path, &e.ETag, &e.LastModified, &e.Size, &sum, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache: lookup %s: %w", url, err)
	}
	if _, err := fmt.Sscanf(sum, "%016x", &e.Checksum); err != nil {
		return Entry{}, fmt.Errorf("cache: bad checksum %q for %s: %w", sum, url, err)
	}
	e.FetchedAt = time.Unix(0, fetched).UTC()
	return e, nil
}

// Record inserts or replaces the entry for e.URL.
func (r *Repository) Record(ctx context.Context, e Entry) error {
	if e.URL == "" {
		return fmt.Errorf("cache: record: url must not be empty")
	}
	const q = `INSERT INTO downloads (url, path, etag, last_modified, size, checksum, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			path = excluded.path,
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			size = excluded.size,
			checksum = excluded.checksum,
			fetched_at = excluded.fetched_at`

	// Checksums are stored as hex text; SQLite integers are signed.
	_, err := r.db.ExecContext(ctx, q,
		e.URL, e.Path, e.ETag, e.LastModified, e.Size,
		fmt.Sprintf("%016x", e.Checksum), e.FetchedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("cache: record %s: %w", e.URL, err)
	}
	return nil
}

// Forget removes the entry for url. Missing entries are not an error.
func (r *Repository) Forget(ctx context.Context, url string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM downloads WHERE url = ?`, url); err != nil {
		return fmt.Errorf("cache: forget %s: %w", url, err)
	}
	return nil
}

// Checksum returns the xxh3 hash and size of the file at path.
func Checksum(path string) (uint64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	h := xxh3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, fmt.Errorf("cache: hash %s: %w", path, err)
	}
	return h.Sum64(), n, nil
}

// Verify reports whether the file at e.Path still matches the recorded size
// and checksum. A missing file is reported as false with no error.
func Verify(e Entry) (bool, error) {
	sum, n, err := Checksum(e.Path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n == e.Size && sum == e.Checksum, nil
}
