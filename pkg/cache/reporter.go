package cache

import (
	"context"
	"fmt"

	"github.com/academy-ai/aicache/pkg/models"
)

// Reporter aggregates store contents for dashboards. It never mutates the
// store and is safe to poll.
type Reporter struct {
	store Store
}

// NewReporter creates a Reporter over store.
func NewReporter(store Store) *Reporter {
	return &Reporter{store: store}
}

// GlobalStats returns entry and hit totals across all functions.
func (r *Reporter) GlobalStats(ctx context.Context) (models.TotalStats, error) {
	stats, err := r.store.TotalStats(ctx)
	if err != nil {
		return models.TotalStats{}, fmt.Errorf("global stats: %w", err)
	}
	return stats, nil
}

// PerFunctionStats returns entry and hit totals grouped by function.
func (r *Reporter) PerFunctionStats(ctx context.Context) (map[string]models.FunctionStats, error) {
	stats, err := r.store.StatsByFunction(ctx)
	if err != nil {
		return nil, fmt.Errorf("function stats: %w", err)
	}
	return stats, nil
}

// Snapshot combines GlobalStats and PerFunctionStats.
func (r *Reporter) Snapshot(ctx context.Context) (models.CacheStats, error) {
	total, err := r.GlobalStats(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	byFn, err := r.PerFunctionStats(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	return models.CacheStats{TotalStats: total, ByFunction: byFn}, nil
}
