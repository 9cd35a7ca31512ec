// Package policy resolves the time-to-live for each AI-generation function.
package policy

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// DefaultTTL is applied to functions with no configured policy.
const DefaultTTL = time.Hour

// ErrInvalidTTL is returned for a zero or negative TTL.
var ErrInvalidTTL = errors.New("policy: ttl must be positive")

// Table maps function names to TTLs. It is read-only after construction and
// safe for concurrent use.
type Table struct {
	defaultTTL time.Duration
	ttls       map[string]time.Duration
}

// New builds a Table. A zero defaultTTL selects DefaultTTL.
func New(defaultTTL time.Duration, ttls map[string]time.Duration) (*Table, error) {
	if defaultTTL == 0 {
		defaultTTL = DefaultTTL
	}
	if defaultTTL < 0 {
		return nil, fmt.Errorf("%w: default %s", ErrInvalidTTL, defaultTTL)
	}
	for fn, ttl := range ttls {
		if ttl <= 0 {
			return nil, fmt.Errorf("%w: %s %s", ErrInvalidTTL, fn, ttl)
		}
	}
	return &Table{defaultTTL: defaultTTL, ttls: maps.Clone(ttls)}, nil
}

// DefaultPolicies are the TTLs of the academy's AI functions.
func DefaultPolicies() map[string]time.Duration {
	return map[string]time.Duration{
		"playerAnalysis":        time.Hour,
		"opponentAnalysis":      48 * time.Hour,
		"trainingSchedule":      24 * time.Hour,
		"matchReport":           12 * time.Hour,
		"nutritionPlan":         72 * time.Hour,
		"performancePrediction": 6 * time.Hour,
		"playerComparison":      6 * time.Hour,
		"drillSuggestion":       24 * time.Hour,
	}
}

// DefaultTable returns a Table holding DefaultPolicies.
func DefaultTable() *Table {
	return &Table{defaultTTL: DefaultTTL, ttls: DefaultPolicies()}
}

// TTLFor returns the configured TTL, or the default for unknown functions.
func (t *Table) TTLFor(functionName string) time.Duration {
	if ttl, ok := t.ttls[functionName]; ok {
		return ttl
	}
	return t.defaultTTL
}

// Known reports whether functionName has an explicit policy.
func (t *Table) Known(functionName string) bool {
	_, ok := t.ttls[functionName]
	return ok
}

// Default returns the fallback TTL.
func (t *Table) Default() time.Duration { return t.defaultTTL }

// Functions returns the configured function names, sorted.
func (t *Table) Functions() []string {
	return slices.Sorted(maps.Keys(t.ttls))
}
