package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/cache/memory"
	"github.com/academy-ai/aicache/pkg/params"
	"github.com/academy-ai/aicache/pkg/policy"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store *memory.Store
	clock *fakeClock
	svc   *cache.Service
	inv   *cache.Invalidator
	rep   *cache.Reporter
}

func newFixture(t *testing.T, opts ...cache.Option) *fixture {
	t.Helper()
	store := memory.New()
	clock := newFakeClock()
	table, err := policy.New(time.Hour, map[string]time.Duration{
		"playerAnalysis":   time.Hour,
		"trainingSchedule": 24 * time.Hour,
		"opponentAnalysis": 48 * time.Hour,
	})
	require.NoError(t, err)

	opts = append([]cache.Option{cache.WithClock(clock.Now), cache.WithLogger(zaptest.NewLogger(t))}, opts...)
	return &fixture{
		store: store,
		clock: clock,
		svc:   cache.NewService(store, table, opts...),
		inv:   cache.NewInvalidator(store, zaptest.NewLogger(t), nil, clock.Now),
		rep:   cache.NewReporter(store),
	}
}

func player(id int) params.Value {
	return params.MustFromAny(map[string]any{"playerId": id})
}

func TestTryGetMissThenHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.TryGet(ctx, "playerAnalysis", player(42))
	require.NoError(t, err)
	assert.False(t, l.Hit)

	require.NoError(t, f.svc.Store(ctx, "playerAnalysis", player(42), []byte(`{"summary":"strong left foot"}`)))

	l, err = f.svc.TryGet(ctx, "playerAnalysis", player(42))
	require.NoError(t, err)
	assert.True(t, l.Hit)
	assert.Equal(t, `{"summary":"strong left foot"}`, string(l.Payload))

	l, err = f.svc.TryGet(ctx, "playerAnalysis", player(43))
	require.NoError(t, err)
	assert.False(t, l.Hit)
}

func TestTTLBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Store(ctx, "playerAnalysis", player(7), []byte("x")))

	f.clock.Advance(time.Hour - time.Nanosecond)
	l, err := f.svc.TryGet(ctx, "playerAnalysis", player(7))
	require.NoError(t, err)
	assert.True(t, l.Hit, "entry must be fresh just before expiry")

	f.clock.Advance(time.Nanosecond)
	l, err = f.svc.TryGet(ctx, "playerAnalysis", player(7))
	require.NoError(t, err)
	assert.False(t, l.Hit, "entry must be expired at createdAt+ttl")
}

func TestUnknownFunctionUsesDefaultTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Store(ctx, "setPieceIdeas", params.Null(), []byte("x")))

	f.clock.Advance(59 * time.Minute)
	l, _ := f.svc.TryGet(ctx, "setPieceIdeas", params.Null())
	assert.True(t, l.Hit)

	f.clock.Advance(time.Minute)
	l, _ = f.svc.TryGet(ctx, "setPieceIdeas", params.Null())
	assert.False(t, l.Hit)
}

func TestHitCounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Store(ctx, "trainingSchedule", params.MustFromAny(map[string]any{"teamId": 5}), []byte("plan")))

	const k = 4
	for range k {
		l, err := f.svc.TryGet(ctx, "trainingSchedule", params.MustFromAny(map[string]any{"teamId": 5}))
		require.NoError(t, err)
		require.True(t, l.Hit)
	}

	byFn, err := f.rep.PerFunctionStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, byFn["trainingSchedule"].Count)
	assert.EqualValues(t, k, byFn["trainingSchedule"].TotalHits)
}

func TestExpiredReadIsNotCountedNorDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Store(ctx, "playerAnalysis", player(1), []byte("x")))

	f.clock.Advance(2 * time.Hour)
	l, err := f.svc.TryGet(ctx, "playerAnalysis", player(1))
	require.NoError(t, err)
	assert.False(t, l.Hit)

	stats, err := f.rep.GlobalStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Entries, "expired rows stay until cleaned")
	assert.EqualValues(t, 0, stats.TotalHits)
}

func TestStoreReplacesEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := player(9)

	require.NoError(t, f.svc.Store(ctx, "playerAnalysis", p, []byte("v1")))
	_, _ = f.svc.TryGet(ctx, "playerAnalysis", p)
	_, _ = f.svc.TryGet(ctx, "playerAnalysis", p)

	f.clock.Advance(30 * time.Minute)
	require.NoError(t, f.svc.Store(ctx, "playerAnalysis", p, []byte("v2")))

	l, err := f.svc.TryGet(ctx, "playerAnalysis", p)
	require.NoError(t, err)
	entry, err := f.store.Get(ctx, l.Key)
	require.NoError(t, err)

	assert.Equal(t, "v2", string(entry.Payload))
	assert.EqualValues(t, 1, entry.HitCount, "hit count restarts from zero on replace")
	assert.Equal(t, f.clock.Now(), entry.CreatedAt)
	assert.Equal(t, f.clock.Now().Add(time.Hour), entry.ExpiresAt)

	// Still fresh 59 minutes after the second store, though 89 after the first.
	f.clock.Advance(59 * time.Minute)
	l, _ = f.svc.TryGet(ctx, "playerAnalysis", p)
	assert.True(t, l.Hit)
}

func TestFailOpenOnStoreUnavailable(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := newFixture(t, cache.WithLogger(zap.New(core)))
	ctx := context.Background()
	f.store.SetUnavailable(true)

	l, err := f.svc.TryGet(ctx, "trainingSchedule", params.MustFromAny(map[string]any{"teamId": 5}))
	require.NoError(t, err, "store failures must not surface from TryGet")
	assert.False(t, l.Hit)
	assert.Equal(t, 1, logs.FilterMessage("cache read failed, treating as miss").Len())

	err = f.svc.Store(ctx, "trainingSchedule", params.MustFromAny(map[string]any{"teamId": 5}), []byte("x"))
	assert.ErrorIs(t, err, cache.ErrStoreUnavailable)
}

func TestInvalidParametersAreLoud(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.TryGet(ctx, "", params.Null())
	assert.ErrorIs(t, err, cache.ErrInvalidParameters)

	_, err = f.svc.TryGet(ctx, "playerAnalysis", params.String(string([]byte{0xff})))
	assert.ErrorIs(t, err, cache.ErrInvalidParameters)

	err = f.svc.Store(ctx, "player analysis", params.Null(), []byte("x"))
	assert.ErrorIs(t, err, cache.ErrInvalidParameters)

	_, _, err = f.svc.GetOrCompute(ctx, "", params.Null(), func(context.Context) ([]byte, error) {
		t.Fatal("compute must not run for invalid parameters")
		return nil, nil
	})
	assert.ErrorIs(t, err, cache.ErrInvalidParameters)
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := player(42)
	start := f.clock.Now()

	require.NoError(t, f.svc.Store(ctx, "playerAnalysis", p, []byte(`{"summary":"..."}`)))

	f.clock.Advance(1800 * time.Second)
	l, err := f.svc.TryGet(ctx, "playerAnalysis", p)
	require.NoError(t, err)
	require.True(t, l.Hit)
	entry, err := f.store.Get(ctx, l.Key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, entry.HitCount)

	f.clock.Advance(1801 * time.Second)
	l, err = f.svc.TryGet(ctx, "playerAnalysis", p)
	require.NoError(t, err)
	assert.False(t, l.Hit)

	n, err := f.inv.CleanExpired(ctx, start.Add(3601*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	snap, err := f.rep.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.ByFunction["playerAnalysis"].Count)
	assert.Zero(t, snap.Entries)
}

func TestInvalidationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := range 3 {
		require.NoError(t, f.svc.Store(ctx, "opponentAnalysis", params.MustFromAny(map[string]any{"club": i}), []byte("x")))
	}
	require.NoError(t, f.svc.Store(ctx, "playerAnalysis", player(1), []byte("x")))

	n, err := f.inv.ClearFunction(ctx, "opponentAnalysis")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = f.inv.ClearFunction(ctx, "opponentAnalysis")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = f.inv.ClearAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = f.inv.ClearAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = f.inv.CleanExpiredNow(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestInvalidatorPropagatesStoreErrors(t *testing.T) {
	f := newFixture(t)
	f.store.SetUnavailable(true)

	_, err := f.inv.ClearAll(context.Background())
	assert.ErrorIs(t, err, cache.ErrStoreUnavailable)
	_, err = f.rep.Snapshot(context.Background())
	assert.ErrorIs(t, err, cache.ErrStoreUnavailable)
}

func TestGetOrCompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var calls atomic.Int32
	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("report"), nil
	}

	out, hit, err := f.svc.GetOrCompute(ctx, "matchReport", params.MustFromAny(map[string]any{"matchId": 3}), compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "report", string(out))

	out, hit, err = f.svc.GetOrCompute(ctx, "matchReport", params.MustFromAny(map[string]any{"matchId": 3}), compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "report", string(out))
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("model overloaded")

	_, _, err := f.svc.GetOrCompute(ctx, "nutritionPlan", player(1), func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	stats, err := f.rep.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestGetOrComputeSurvivesStoreOutage(t *testing.T) {
	f := newFixture(t)
	f.store.SetUnavailable(true)

	out, hit, err := f.svc.GetOrCompute(context.Background(), "nutritionPlan", player(1), func(context.Context) ([]byte, error) {
		return []byte("plan"), nil
	})
	require.NoError(t, err, "a cache outage must not fail the feature")
	assert.False(t, hit)
	assert.Equal(t, "plan", string(out))
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	f := newFixture(t, cache.WithSingleFlight())
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("schedule"), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, _, err := f.svc.GetOrCompute(ctx, "trainingSchedule", params.MustFromAny(map[string]any{"teamId": 5}), compute)
			assert.NoError(t, err)
			results[i] = string(out)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Equal(t, "schedule", r)
	}
}

func TestGetOrComputeSingleFlightIgnoresLeaderCancel(t *testing.T) {
	f := newFixture(t, cache.WithSingleFlight())
	team := params.MustFromAny(map[string]any{"teamId": 7})

	var calls atomic.Int32
	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		select {
		case <-release:
			return []byte("schedule"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := f.svc.GetOrCompute(leaderCtx, "trainingSchedule", team, compute)
		leaderErr <- err
	}()
	<-started

	type result struct {
		out []byte
		err error
	}
	follower := make(chan result, 1)
	go func() {
		out, _, err := f.svc.GetOrCompute(context.Background(), "trainingSchedule", team, compute)
		follower <- result{out, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("leader did not return after cancel")
	}

	close(release)
	select {
	case r := <-follower:
		require.NoError(t, r.err)
		assert.Equal(t, "schedule", string(r.out))
	case <-time.After(time.Second):
		t.Fatal("follower did not return")
	}
	assert.EqualValues(t, 1, calls.Load())

	l, err := f.svc.TryGet(context.Background(), "trainingSchedule", team)
	require.NoError(t, err)
	assert.True(t, l.Hit)
}

func TestRunJanitor(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.svc.Store(ctx, "playerAnalysis", player(1), []byte("x")))
	require.NoError(t, f.svc.Store(ctx, "opponentAnalysis", player(1), []byte("x")))
	f.clock.Advance(2 * time.Hour)

	done := make(chan struct{})
	go func() {
		f.inv.RunJanitor(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		stats, err := f.rep.GlobalStats(context.Background())
		return err == nil && stats.Entries == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop on cancellation")
	}
}
