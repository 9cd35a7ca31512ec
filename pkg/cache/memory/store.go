// Package memory implements cache.Store in process memory. Entries do not
// survive a restart; it backs tests and the serve --ephemeral mode.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/models"
)

// errInjected is the cause reported while the store is marked unavailable.
var errInjected = errors.New("backend marked unavailable")

// Store is a map guarded by a RWMutex. Payloads are copied on the way in and
// out so callers cannot mutate stored entries.
type Store struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	down    atomic.Bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]models.CacheEntry)}
}

// SetUnavailable makes every operation fail with cache.ErrStoreUnavailable
// until called again with false.
func (s *Store) SetUnavailable(down bool) { s.down.Store(down) }

func (s *Store) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", cache.ErrStoreUnavailable, op, err)
	}
	if s.down.Load() {
		return fmt.Errorf("%w: %s: %w", cache.ErrStoreUnavailable, op, errInjected)
	}
	return nil
}

// Get returns a copy of the entry under key, expired or not.
func (s *Store) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	if err := s.check(ctx, "get"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, cache.ErrNotFound
	}
	e.Payload = bytes.Clone(e.Payload)
	return &e, nil
}

// Put replaces any entry under the same key.
func (s *Store) Put(ctx context.Context, entry *models.CacheEntry) error {
	if err := s.check(ctx, "put"); err != nil {
		return err
	}
	if !entry.ExpiresAt.After(entry.CreatedAt) {
		return fmt.Errorf("cache put %s: expires_at must be after created_at", entry.Key)
	}
	e := *entry
	e.Payload = bytes.Clone(entry.Payload)
	s.mu.Lock()
	s.entries[e.Key] = e
	s.mu.Unlock()
	return nil
}

// IncrementHit adds one to the hit counter of key, if present.
func (s *Store) IncrementHit(ctx context.Context, key string) error {
	if err := s.check(ctx, "increment hit"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.HitCount++
		s.entries[key] = e
	}
	return nil
}

func (s *Store) deleteIf(ctx context.Context, op string, match func(models.CacheEntry) bool) (int64, error) {
	if err := s.check(ctx, op); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, e := range s.entries {
		if match(e) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// DeleteByFunction removes every entry of functionName.
func (s *Store) DeleteByFunction(ctx context.Context, functionName string) (int64, error) {
	return s.deleteIf(ctx, "delete by function", func(e models.CacheEntry) bool {
		return e.FunctionName == functionName
	})
}

// DeleteAll removes every entry.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	return s.deleteIf(ctx, "delete all", func(models.CacheEntry) bool { return true })
}

// DeleteExpired removes entries expired at now.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteIf(ctx, "delete expired", func(e models.CacheEntry) bool {
		return e.Expired(now)
	})
}

// StatsByFunction returns entry and hit counts per function.
func (s *Store) StatsByFunction(ctx context.Context) (map[string]models.FunctionStats, error) {
	if err := s.check(ctx, "stats by function"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[string]models.FunctionStats)
	for _, e := range s.entries {
		fs := stats[e.FunctionName]
		fs.Count++
		fs.TotalHits += e.HitCount
		stats[e.FunctionName] = fs
	}
	return stats, nil
}

// TotalStats returns entry and hit counts over the whole store.
func (s *Store) TotalStats(ctx context.Context) (models.TotalStats, error) {
	if err := s.check(ctx, "total stats"); err != nil {
		return models.TotalStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts := models.TotalStats{Entries: int64(len(s.entries))}
	for _, e := range s.entries {
		ts.TotalHits += e.HitCount
	}
	return ts, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

var _ cache.Store = (*Store)(nil)
