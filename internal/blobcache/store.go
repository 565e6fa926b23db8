// Package blobcache keeps downloaded file contents in a SQLite database
// keyed by git blob SHA. Blob SHAs name immutable content, so entries
// never go stale; the store only evicts to stay under a size limit,
// least recently read first.
package blobcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const (
	sqlGetBlob = `SELECT content FROM blobs WHERE sha = ?`

	sqlTouchBlob = `UPDATE blobs SET accessed_at = ? WHERE sha = ?`

	sqlPutBlob = `INSERT INTO blobs (sha, size, content, stored_at, accessed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sha) DO UPDATE SET accessed_at = excluded.accessed_at`

	sqlTotals = `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM blobs`

	sqlOldest = `SELECT sha, size FROM blobs ORDER BY accessed_at, sha`

	sqlDeleteBlob = `DELETE FROM blobs WHERE sha = ?`
)

// Store is a content-addressed blob cache. Safe for concurrent use; the
// single database connection serializes writers.
type Store struct {
	db       *sql.DB
	maxBytes int64
	logger   *slog.Logger
	nowFunc  func() time.Time // injectable for deterministic tests
}

// Stats describes the store's contents.
type Stats struct {
	Blobs int
	Bytes int64
}

// Open opens (creating if needed) the cache database at dbPath and runs
// migrations. maxBytes bounds the total content size; 0 disables
// eviction.
func Open(ctx context.Context, dbPath string, maxBytes int64, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("blobcache: creating directory for %s: %w", dbPath, err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"+
			"&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("blobcache: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("blob cache opened", slog.String("db_path", dbPath), slog.Int64("max_bytes", maxBytes))

	return &Store{db: db, maxBytes: maxBytes, logger: logger, nowFunc: time.Now}, nil
}

// Get returns the content stored under sha and marks it recently used.
func (s *Store) Get(ctx context.Context, sha string) ([]byte, bool, error) {
	var content []byte

	err := s.db.QueryRowContext(ctx, sqlGetBlob, sha).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("blobcache: reading %s: %w", sha, err)
	}

	if _, err := s.db.ExecContext(ctx, sqlTouchBlob, s.nowFunc().UnixNano(), sha); err != nil {
		return nil, false, fmt.Errorf("blobcache: touching %s: %w", sha, err)
	}

	if content == nil {
		content = []byte{}
	}

	return content, true, nil
}

// Put stores content under sha, then evicts old entries if the store has
// grown past its limit.
func (s *Store) Put(ctx context.Context, sha string, content []byte) error {
	if content == nil {
		content = []byte{}
	}

	now := s.nowFunc().UnixNano()

	if _, err := s.db.ExecContext(ctx, sqlPutBlob, sha, len(content), content, now, now); err != nil {
		return fmt.Errorf("blobcache: storing %s: %w", sha, err)
	}

	if s.maxBytes > 0 {
		if _, err := s.Prune(ctx, s.maxBytes); err != nil {
			return err
		}
	}

	return nil
}

// Stats reports the number of cached blobs and their total size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	if err := s.db.QueryRowContext(ctx, sqlTotals).Scan(&st.Blobs, &st.Bytes); err != nil {
		return Stats{}, fmt.Errorf("blobcache: reading totals: %w", err)
	}

	return st, nil
}

// Prune deletes least recently used blobs until the total size is at
// most maxBytes. It returns the number of blobs removed.
func (s *Store) Prune(ctx context.Context, maxBytes int64) (int, error) {
	st, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}

	if st.Bytes <= maxBytes {
		return 0, nil
	}

	victims, err := s.oldest(ctx, st.Bytes-maxBytes)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("blobcache: beginning prune: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var freed int64

	for _, v := range victims {
		if _, err := tx.ExecContext(ctx, sqlDeleteBlob, v.sha); err != nil {
			return 0, fmt.Errorf("blobcache: evicting %s: %w", v.sha, err)
		}

		freed += v.size
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("blobcache: committing prune: %w", err)
	}

	s.logger.Info("pruned blob cache",
		slog.Int("blobs", len(victims)),
		slog.String("freed", humanize.IBytes(uint64(freed))), //nolint:gosec // sizes are non-negative
	)

	return len(victims), nil
}

type victim struct {
	sha  string
	size int64
}

// oldest returns least recently used blobs whose sizes add up to at
// least need bytes.
func (s *Store) oldest(ctx context.Context, need int64) ([]victim, error) {
	rows, err := s.db.QueryContext(ctx, sqlOldest)
	if err != nil {
		return nil, fmt.Errorf("blobcache: listing blobs: %w", err)
	}
	defer rows.Close()

	var (
		out   []victim
		total int64
	)

	for rows.Next() && total < need {
		var v victim
		if err := rows.Scan(&v.sha, &v.size); err != nil {
			return nil, fmt.Errorf("blobcache: scanning blob row: %w", err)
		}

		out = append(out, v)
		total += v.size
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("blobcache: listing blobs: %w", err)
	}

	return out, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
