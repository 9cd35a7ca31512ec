package models

import "time"

// CacheEntry stores a cached AI-generation result.
type CacheEntry struct {
	Key          string    `json:"key"`
	FunctionName string    `json:"function_name"`
	Payload      []byte    `json:"payload"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	HitCount     int64     `json:"hit_count"`
}

// Expired reports whether the entry is logically expired at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// FunctionStats aggregates the entries of one function.
type FunctionStats struct {
	Count     int64 `json:"count"`
	TotalHits int64 `json:"hits"`
}

// HitRate returns hits per entry, or 0 for no entries.
func (s FunctionStats) HitRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TotalHits) / float64(s.Count)
}

// TotalStats aggregates every entry in the store.
type TotalStats struct {
	Entries   int64 `json:"total_entries"`
	TotalHits int64 `json:"total_hits"`
}

// HitRate returns hits per entry, or 0 for no entries.
func (s TotalStats) HitRate() float64 {
	if s.Entries == 0 {
		return 0
	}
	return float64(s.TotalHits) / float64(s.Entries)
}

// CacheStats is the administrative statistics snapshot.
type CacheStats struct {
	TotalStats
	ByFunction map[string]FunctionStats `json:"by_function"`
}

// InvalidationResult reports how many entries an invalidation removed.
type InvalidationResult struct {
	Count int64 `json:"count"`
}

// JobFailure describes one failed warmup job.
type JobFailure struct {
	FunctionName string `json:"function_name"`
	Params       string `json:"params"`
	Error        string `json:"error"`
}

// WarmupResult summarises a warmup run.
type WarmupResult struct {
	RunID        string        `json:"run_id"`
	TotalSuccess int           `json:"total_success"`
	TotalFailure int           `json:"total_failure"`
	Skipped      int           `json:"skipped"`
	Abandoned    int           `json:"abandoned"`
	Duration     time.Duration `json:"duration"`
	Failures     []JobFailure  `json:"failures,omitempty"`
}
