package mcp

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/academy-ai/aicache/pkg/models"
)

// formatCacheStats formats cache stats as a text table.
func formatCacheStats(stats models.CacheStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cache Statistics\n"+
		"  Entries:        %s\n"+
		"  Hits:           %s\n"+
		"  Hits per entry: %.2f\n",
		humanize.Comma(stats.Entries), humanize.Comma(stats.TotalHits), stats.HitRate())
	if len(stats.ByFunction) == 0 {
		return b.String()
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%-24s %10s %10s %10s\n", "Function", "Entries", "Hits", "Hits/Ent")
	b.WriteString(strings.Repeat("-", 57) + "\n")
	names := make([]string, 0, len(stats.ByFunction))
	for fn := range stats.ByFunction {
		names = append(names, fn)
	}
	slices.Sort(names)
	for _, fn := range names {
		s := stats.ByFunction[fn]
		fmt.Fprintf(&b, "%-24s %10d %10d %10.2f\n", fn, s.Count, s.TotalHits, s.HitRate())
	}
	return b.String()
}

// formatInvalidation formats the result of a clear or clean operation.
func formatInvalidation(verb, functionName string, res models.InvalidationResult) string {
	scope := ""
	if functionName != "" {
		scope = " of " + functionName
	}
	return fmt.Sprintf("%s %s %s%s.", verb, humanize.Comma(res.Count), plural(res.Count, "entry", "entries"), scope)
}

// formatWarmup formats a warmup summary.
func formatWarmup(res models.WarmupResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Warmup %s\n"+
		"  Success:   %d\n"+
		"  Failure:   %d\n"+
		"  Skipped:   %d\n"+
		"  Abandoned: %d\n"+
		"  Duration:  %s\n",
		res.RunID, res.TotalSuccess, res.TotalFailure, res.Skipped, res.Abandoned,
		res.Duration.Round(time.Millisecond))
	for _, f := range res.Failures {
		fmt.Fprintf(&b, "  ! %s %s: %s\n", f.FunctionName, f.Params, f.Error)
	}
	return b.String()
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
