package admin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academy-ai/aicache/pkg/audit"
	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/cache/memory"
	"github.com/academy-ai/aicache/pkg/models"
	"github.com/academy-ai/aicache/pkg/params"
	"github.com/academy-ai/aicache/pkg/policy"
	"github.com/academy-ai/aicache/pkg/warmup"
)

type fixture struct {
	admin   *Admin
	svc     *cache.Service
	auditor *audit.Logger
}

func newFixture(t *testing.T, jobs []warmup.Job) fixture {
	t.Helper()
	store := memory.New()
	svc := cache.NewService(store, policy.DefaultTable())
	auditor, err := audit.New(models.AuditConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "audit.db"),
		RetentionDays: 30,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditor.Close() })

	return fixture{
		admin: New(Deps{
			Invalidator: cache.NewInvalidator(store, nil, nil, nil),
			Reporter:    cache.NewReporter(store),
			Scheduler:   warmup.New(svc),
			Jobs:        jobs,
			Auditor:     auditor,
		}),
		svc:     svc,
		auditor: auditor,
	}
}

func TestOperationsAreAudited(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for i := range 3 {
		require.NoError(t, f.svc.Store(ctx, "opponentAnalysis", params.MustFromAny(map[string]any{"club": i}), []byte("x")))
	}

	res, err := f.admin.ClearFunction(ctx, "cli", "opponentAnalysis")
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Count)

	res, err = f.admin.ClearFunction(ctx, "cli", "opponentAnalysis")
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Count)

	_, err = f.admin.CleanExpired(ctx, "http")
	require.NoError(t, err)
	_, err = f.admin.ClearAll(ctx, "mcp")
	require.NoError(t, err)

	events, err := f.auditor.Query(ctx, models.AuditQueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 4)

	clears, err := f.auditor.Query(ctx, models.AuditQueryOpts{Operation: models.OpClearFunction})
	require.NoError(t, err)
	require.Len(t, clears, 2)
	var counts []int64
	for _, e := range clears {
		assert.Equal(t, "opponentAnalysis", e.FunctionName)
		assert.Equal(t, "cli", e.Actor)
		counts = append(counts, e.Count)
	}
	assert.ElementsMatch(t, []int64{3, 0}, counts)
}

func TestClearFunctionRejectsBadName(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.admin.ClearFunction(context.Background(), "http", "")
	assert.ErrorIs(t, err, cache.ErrInvalidParameters)
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := params.MustFromAny(map[string]any{"playerId": 42})
	require.NoError(t, f.svc.Store(ctx, "playerAnalysis", p, []byte("x")))
	_, _ = f.svc.TryGet(ctx, "playerAnalysis", p)

	stats, err := f.admin.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Entries)
	assert.EqualValues(t, 1, stats.TotalHits)
	assert.Equal(t, models.FunctionStats{Count: 1, TotalHits: 1}, stats.ByFunction["playerAnalysis"])
}

func TestWarmup(t *testing.T) {
	jobs := []warmup.Job{{
		FunctionName: "trainingSchedule",
		Params:       params.MustFromAny(map[string]any{"teamId": 5}),
		Compute:      func(context.Context) ([]byte, error) { return []byte("plan"), nil },
	}}
	f := newFixture(t, jobs)
	ctx := context.Background()

	res, err := f.admin.Warmup(ctx, "cli")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalSuccess)
	assert.Equal(t, 1, f.admin.WarmupJobs())

	res, err = f.admin.Warmup(ctx, "cli")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped, "second run finds the entry fresh")

	events, err := f.auditor.Query(ctx, models.AuditQueryOpts{Operation: models.OpWarmup, Since: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestNilAuditorIsAllowed(t *testing.T) {
	store := memory.New()
	a := New(Deps{
		Invalidator: cache.NewInvalidator(store, nil, nil, nil),
		Reporter:    cache.NewReporter(store),
	})
	res, err := a.ClearAll(context.Background(), "cli")
	require.NoError(t, err)
	assert.Zero(t, res.Count)
}
