package fragcache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	uierrors "github.com/conneroisu/uikit/internal/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fragments (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_fragments_expires ON fragments(expires_at);
`

// SQLite persists fragments in a SQLite database so they survive restarts.
// An expires_at of 0 means the fragment never expires.
type SQLite struct {
	db    *sql.DB
	group singleflight.Group
	now   func() time.Time
}

var (
	_ Cache  = (*SQLite)(nil)
	_ Purger = (*SQLite)(nil)
)

// OpenSQLite opens (or creates) the fragment database at path. The special
// path ":memory:" yields a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, uierrors.NewIOError("CACHE_DIR", "create cache directory", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Get returns the stored fragment or computes and persists it
func (s *SQLite) Get(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	value, ok, err := s.load(ctx, key)
	if err != nil {
		return "", err
	}
	if ok {
		return value, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		value, err := compute()
		if err != nil {
			return "", err
		}
		if err := s.save(ctx, key, value, ttl); err != nil {
			return "", err
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *SQLite) load(ctx context.Context, key string) (string, bool, error) {
	var (
		value     string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM fragments WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, uierrors.NewCacheError(uierrors.CodeCacheFailure, "read fragment", err).
			WithContext("key", key)
	}
	if expiresAt != 0 && s.now().UnixNano() >= expiresAt {
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLite) save(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt int64
	if t := expiry(s.now(), ttl); !t.IsZero() {
		expiresAt = t.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fragments (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return uierrors.NewCacheError(uierrors.CodeCacheFailure, "store fragment", err).
			WithContext("key", key)
	}
	return nil
}

// Delete removes key
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM fragments WHERE key = ?", key); err != nil {
		return uierrors.NewCacheError(uierrors.CodeCacheFailure, "delete fragment", err)
	}
	return nil
}

// Clear removes every fragment
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM fragments"); err != nil {
		return uierrors.NewCacheError(uierrors.CodeCacheFailure, "clear fragments", err)
	}
	return nil
}

// Purge deletes expired fragments and reports how many were removed.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM fragments WHERE expires_at != 0 AND expires_at <= ?", s.now().UnixNano())
	if err != nil {
		return 0, uierrors.NewCacheError(uierrors.CodeCacheFailure, "purge fragments", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored rows, expired ones included.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fragments").Scan(&n)
	return n, err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
