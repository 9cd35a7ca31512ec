package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/academy-ai/aicache/pkg/metrics"
)

// Invalidator performs bulk removals. Every operation is idempotent: when
// nothing matches it returns 0 and no error.
type Invalidator struct {
	store   Store
	clock   func() time.Time
	logger  *zap.Logger
	metrics *metrics.Cache
}

// NewInvalidator creates an Invalidator over store. A nil logger discards
// output and a nil clock uses time.Now.
func NewInvalidator(store Store, logger *zap.Logger, m *metrics.Cache, clock func() time.Time) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Invalidator{store: store, clock: clock, logger: logger.Named("invalidator"), metrics: m}
}

// ClearAll removes every entry.
func (i *Invalidator) ClearAll(ctx context.Context) (int64, error) {
	n, err := i.store.DeleteAll(ctx)
	if err != nil {
		i.metrics.StoreError("delete_all")
		return 0, fmt.Errorf("clear all: %w", err)
	}
	i.metrics.Invalidated("clear_all", n)
	i.logger.Info("cache cleared", zap.Int64("count", n))
	return n, nil
}

// ClearFunction removes every entry produced by functionName.
func (i *Invalidator) ClearFunction(ctx context.Context, functionName string) (int64, error) {
	n, err := i.store.DeleteByFunction(ctx, functionName)
	if err != nil {
		i.metrics.StoreError("delete_by_function")
		return 0, fmt.Errorf("clear %s: %w", functionName, err)
	}
	i.metrics.Invalidated("clear_function", n)
	i.logger.Info("function cache cleared", zap.String("function", functionName), zap.Int64("count", n))
	return n, nil
}

// CleanExpired physically removes entries with expiresAt <= now.
func (i *Invalidator) CleanExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := i.store.DeleteExpired(ctx, now)
	if err != nil {
		i.metrics.StoreError("delete_expired")
		return 0, fmt.Errorf("clean expired: %w", err)
	}
	i.metrics.Invalidated("clean_expired", n)
	if n > 0 {
		i.logger.Info("expired entries cleaned", zap.Int64("count", n))
	}
	return n, nil
}

// CleanExpiredNow runs CleanExpired at the invalidator's current time.
func (i *Invalidator) CleanExpiredNow(ctx context.Context) (int64, error) {
	return i.CleanExpired(ctx, i.clock())
}

// RunJanitor cleans expired entries every interval until ctx is done.
func (i *Invalidator) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := i.CleanExpiredNow(ctx); err != nil && ctx.Err() == nil {
				i.logger.Warn("janitor pass failed", zap.Error(err))
			}
		}
	}
}
