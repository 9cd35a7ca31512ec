// Package cache memoizes expensive AI-generation calls.
//
// A Service is constructed once at startup around a Store and a policy
// Table and handed to every feature that generates AI content. Features ask
// the Service before calling the generator and store the result on a miss.
// Invalidator and Reporter provide the administrative operations over the
// same Store.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/academy-ai/aicache/pkg/models"
	"github.com/academy-ai/aicache/pkg/params"
)

// Sentinel errors.
var (
	// ErrNotFound is returned by Store.Get for an absent key.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrStoreUnavailable wraps every failure of the durable backend.
	ErrStoreUnavailable = errors.New("cache: store unavailable")

	// ErrInvalidParameters is returned when parameters cannot be keyed.
	ErrInvalidParameters = params.ErrInvalidParameters
)

// Store is durable storage for cache entries.
//
// Contract:
//   - Get performs no freshness check and has no side effects.
//   - Put replaces any entry under the same key atomically; readers see the
//     old or the new entry, never a mix.
//   - IncrementHit is a no-op for absent keys.
//   - Delete* return the number of rows removed and succeed with 0 when
//     nothing matches.
//   - Backend failures are wrapped in ErrStoreUnavailable and not retried.
//   - Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Put(ctx context.Context, entry *models.CacheEntry) error
	IncrementHit(ctx context.Context, key string) error
	DeleteByFunction(ctx context.Context, functionName string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	StatsByFunction(ctx context.Context) (map[string]models.FunctionStats, error)
	TotalStats(ctx context.Context) (models.TotalStats, error)
	Close() error
}
