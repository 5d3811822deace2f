package cache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// SQLite is a durable cache backend sharing the server's SQLite database.
// Entries survive restarts; expiry is lazy — an expired row is deleted by
// the lookup that finds it, there is no sweeper.
type SQLite struct {
	db *sql.DB

	// now is replaceable in tests.
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// NewSQLite creates the cache table if needed and returns the backend.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			ai_text    TEXT NOT NULL,
			image_url  TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Lookup returns the entry for key. Backend errors and expired rows both
// read as a miss.
func (s *SQLite) Lookup(ctx context.Context, key string) (*Entry, bool) {
	var e Entry
	var expiresAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT ai_text, image_url, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&e.Text, &e.ImageURL, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Warn("cache lookup failed, treating as miss", "key", key, "error", err)
		return nil, false
	}

	exp, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil || !s.now().UTC().Before(exp) {
		// Expired (or unparseable) entry: drop it lazily.
		if _, derr := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); derr != nil {
			slog.Warn("cache expiry delete failed", "key", key, "error", derr)
		}
		return nil, false
	}
	return &e, true
}

// Put stores or overwrites the entry for key with an absolute expiry of
// now+ttl. A re-generation overwrites; entries are never merged.
func (s *SQLite) Put(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	expiresAt := s.now().UTC().Add(ttl).Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, ai_text, image_url, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			ai_text    = excluded.ai_text,
			image_url  = excluded.image_url,
			expires_at = excluded.expires_at`,
		key, e.Text, e.ImageURL, expiresAt,
	)
	return err
}
