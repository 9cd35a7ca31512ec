// Package sqlite implements cache.Store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/models"
)

// Store is a durable cache store backed by SQLite. Timestamps are stored as
// Unix nanoseconds so expiry comparisons happen on integers.
type Store struct {
	db *sql.DB
}

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS cache_entries (
	key           TEXT PRIMARY KEY,
	function_name TEXT NOT NULL,
	payload       BLOB NOT NULL,
	created_at    INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL,
	hit_count     INTEGER NOT NULL DEFAULT 0,
	CHECK (expires_at > created_at)
);
CREATE INDEX IF NOT EXISTS idx_cache_function ON cache_entries(function_name);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`,
	},
}

// New opens (or creates) the cache database at dbPath and applies pending
// migrations. Pass ":memory:" for a private in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", cache.ErrStoreUnavailable, op, err)
}

// Get returns the entry stored under key, expired or not.
func (s *Store) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	var (
		e                    models.CacheEntry
		createdAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, function_name, payload, created_at, expires_at, hit_count
		 FROM cache_entries WHERE key = ?`,
		key,
	).Scan(&e.Key, &e.FunctionName, &e.Payload, &createdAt, &expiresAt, &e.HitCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	e.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return &e, nil
}

// Put inserts entry, replacing any row with the same key in one statement.
func (s *Store) Put(ctx context.Context, entry *models.CacheEntry) error {
	if !entry.ExpiresAt.After(entry.CreatedAt) {
		return fmt.Errorf("cache put %s: expires_at must be after created_at", entry.Key)
	}
	payload := entry.Payload
	if payload == nil {
		payload = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, function_name, payload, created_at, expires_at, hit_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Key, entry.FunctionName, payload,
		entry.CreatedAt.UnixNano(), entry.ExpiresAt.UnixNano(), entry.HitCount,
	)
	if err != nil {
		return unavailable("put", err)
	}
	return nil
}

// IncrementHit adds one to the hit counter of key, if present.
func (s *Store) IncrementHit(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1 WHERE key = ?`, key)
	if err != nil {
		return unavailable("increment hit", err)
	}
	return nil
}

func (s *Store) deleteWhere(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(op, err)
	}
	return n, nil
}

// DeleteByFunction removes every entry of functionName.
func (s *Store) DeleteByFunction(ctx context.Context, functionName string) (int64, error) {
	return s.deleteWhere(ctx, "delete by function",
		`DELETE FROM cache_entries WHERE function_name = ?`, functionName)
}

// DeleteAll removes every entry.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, "delete all", `DELETE FROM cache_entries`)
}

// DeleteExpired removes entries with expires_at <= now.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteWhere(ctx, "delete expired",
		`DELETE FROM cache_entries WHERE expires_at <= ?`, now.UnixNano())
}

// StatsByFunction returns entry counts and hit sums grouped by function.
func (s *Store) StatsByFunction(ctx context.Context) (map[string]models.FunctionStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT function_name, COUNT(*), COALESCE(SUM(hit_count), 0)
		 FROM cache_entries GROUP BY function_name`)
	if err != nil {
		return nil, unavailable("stats by function", err)
	}
	defer rows.Close()

	stats := make(map[string]models.FunctionStats)
	for rows.Next() {
		var (
			fn string
			fs models.FunctionStats
		)
		if err := rows.Scan(&fn, &fs.Count, &fs.TotalHits); err != nil {
			return nil, unavailable("scan stats", err)
		}
		stats[fn] = fs
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("stats by function", err)
	}
	return stats, nil
}

// TotalStats returns entry count and hit sum across all functions.
func (s *Store) TotalStats(ctx context.Context) (models.TotalStats, error) {
	var ts models.TotalStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM cache_entries`,
	).Scan(&ts.Entries, &ts.TotalHits)
	if err != nil {
		return models.TotalStats{}, unavailable("total stats", err)
	}
	return ts, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ cache.Store = (*Store)(nil)
