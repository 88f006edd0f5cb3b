// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package hashcache persists content hashes of files keyed by (path, size,
// mtime) so repeated runs do not re-read unchanged media. A stale entry,
// where the file's current size or mtime differs from the recorded one,
// never produces a hit.
package hashcache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	connectionSetupTimeout = 15 * time.Second
	busyTimeoutMillis      = 5000

	// memoryTTL bounds the in-process read-through layer. Entries are
	// refreshed on every Put, so a long TTL is safe within a single run.
	memoryTTL = 30 * time.Minute
)

var connectionPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL", // NORMAL is safe with WAL and much faster than FULL
	"PRAGMA foreign_keys = ON",
	fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMillis),
}

// Entry is one cached hash row.
type Entry struct {
	Path    string
	Size    int64
	MtimeNs int64
	Hash    string
}

// Stats summarizes the cache contents for the cache CLI commands.
type Stats struct {
	Entries   int64
	TotalSize int64 // bytes of file content covered by cached hashes
	DBSize    int64 // size of the sqlite file on disk
}

// Store is the sqlite-backed hash cache with an in-memory read-through
// layer in front. A single connection serializes all access; the cleanup
// run and the cache CLI commands never share a store instance.
type Store struct {
	conn *sql.DB
	path string
	mem  *ttlcache.Cache[string, Entry]
}

func newMemCache() *ttlcache.Cache[string, Entry] {
	return ttlcache.New(ttlcache.Options[string, Entry]{}.SetDefaultTTL(memoryTTL))
}

// New opens or creates the hash cache database at dbPath and applies any
// pending migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open hash cache at %s: %w", dbPath, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
	defer cancel()

	for _, pragma := range connectionPragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply connection pragma %q: %w", pragma, err)
		}
	}

	s := &Store{
		conn: conn,
		path: dbPath,
		mem:  newMemCache(),
	}

	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	log.Debug().Str("path", dbPath).Msg("hash cache ready")
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		var count int
		if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE filename = ?", filename).Scan(&count); err != nil {
			return fmt.Errorf("check migration status for %s: %w", filename, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (filename) VALUES (?)", filename); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", filename, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", filename, err)
		}

		log.Debug().Str("migration", filename).Msg("applied hash cache migration")
	}

	return nil
}

// Get returns the cached hash for path iff the recorded size and mtime
// match the given ones exactly.
func (s *Store) Get(ctx context.Context, path string, size, mtimeNs int64) (string, bool, error) {
	if e, ok := s.mem.Get(path); ok {
		if e.Size == size && e.MtimeNs == mtimeNs {
			return e.Hash, true, nil
		}
		return "", false, nil
	}

	var e Entry
	err := s.conn.QueryRowContext(ctx,
		"SELECT size, mtime_ns, hash FROM hash_cache WHERE path = ?", path,
	).Scan(&e.Size, &e.MtimeNs, &e.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query hash cache: %w", err)
	}

	e.Path = path
	s.mem.Set(path, e, ttlcache.DefaultTTL)

	if e.Size != size || e.MtimeNs != mtimeNs {
		return "", false, nil
	}
	return e.Hash, true, nil
}

// Put upserts the entry, replacing any stale row for the same path.
func (s *Store) Put(ctx context.Context, e Entry) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO hash_cache (path, size, mtime_ns, hash, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (path) DO UPDATE SET
			size = excluded.size,
			mtime_ns = excluded.mtime_ns,
			hash = excluded.hash,
			updated_at = CURRENT_TIMESTAMP
	`, e.Path, e.Size, e.MtimeNs, e.Hash)
	if err != nil {
		return fmt.Errorf("upsert hash cache entry for %s: %w", e.Path, err)
	}

	s.mem.Set(e.Path, e, ttlcache.DefaultTTL)
	return nil
}

// Stats reports entry count and sizes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(size), 0) FROM hash_cache",
	).Scan(&st.Entries, &st.TotalSize); err != nil {
		return Stats{}, fmt.Errorf("query hash cache stats: %w", err)
	}

	if fi, err := os.Stat(s.path); err == nil {
		st.DBSize = fi.Size()
	}
	return st, nil
}

// Prune removes entries whose file no longer exists or whose size/mtime no
// longer match, and returns the number of rows removed. Rows must be fully
// collected before deleting: the single connection cannot interleave a
// write with an open result set.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT path, size, mtime_ns FROM hash_cache")
	if err != nil {
		return 0, fmt.Errorf("scan hash cache for pruning: %w", err)
	}

	var stale []string
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Size, &e.MtimeNs); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan hash cache row: %w", err)
		}

		fi, err := os.Stat(e.Path)
		if err != nil || fi.Size() != e.Size || fi.ModTime().UnixNano() != e.MtimeNs {
			stale = append(stale, e.Path)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate hash cache rows: %w", err)
	}
	rows.Close()

	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune transaction: %w", err)
	}
	for _, path := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM hash_cache WHERE path = ?", path); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("delete stale entry %s: %w", path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune transaction: %w", err)
	}

	for _, path := range stale {
		s.mem.Delete(path)
	}

	log.Debug().Int("pruned", len(stale)).Msg("pruned stale hash cache entries")
	return int64(len(stale)), nil
}

// Clear removes every entry and returns the number removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM hash_cache")
	if err != nil {
		return 0, fmt.Errorf("clear hash cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleared entries: %w", err)
	}

	s.mem.Close()
	s.mem = newMemCache()
	return n, nil
}

// Conn exposes the underlying connection for tests.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

func (s *Store) Close() error {
	s.mem.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.conn.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		log.Warn().Err(err).Msg("failed to run PRAGMA optimize during close")
	}

	return s.conn.Close()
}
