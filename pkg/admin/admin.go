// Package admin is the operational surface of the cache: statistics, the
// three invalidations and warmup. The HTTP server, the MCP server and the
// CLI all go through it, so every operation is audited the same way.
package admin

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/academy-ai/aicache/pkg/audit"
	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/cachekey"
	"github.com/academy-ai/aicache/pkg/models"
	"github.com/academy-ai/aicache/pkg/warmup"
)

// Admin runs administrative operations. All of them are idempotent and safe
// to retry.
type Admin struct {
	inv       *cache.Invalidator
	rep       *cache.Reporter
	scheduler *warmup.Scheduler
	jobs      []warmup.Job
	auditor   *audit.Logger
	logger    *zap.Logger
}

// Deps groups the collaborators of an Admin. Auditor and Logger may be nil.
type Deps struct {
	Invalidator *cache.Invalidator
	Reporter    *cache.Reporter
	Scheduler   *warmup.Scheduler
	Jobs        []warmup.Job
	Auditor     *audit.Logger
	Logger      *zap.Logger
}

// New creates an Admin.
func New(d Deps) *Admin {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Admin{
		inv:       d.Invalidator,
		rep:       d.Reporter,
		scheduler: d.Scheduler,
		jobs:      d.Jobs,
		auditor:   d.Auditor,
		logger:    logger.Named("admin"),
	}
}

// Stats returns totals and per-function counters.
func (a *Admin) Stats(ctx context.Context) (models.CacheStats, error) {
	return a.rep.Snapshot(ctx)
}

// ClearAll removes every entry.
func (a *Admin) ClearAll(ctx context.Context, actor string) (models.InvalidationResult, error) {
	start := time.Now()
	n, err := a.inv.ClearAll(ctx)
	a.record(ctx, models.AuditEvent{Operation: models.OpClearAll, Actor: actor, Count: n}, start, err)
	return models.InvalidationResult{Count: n}, err
}

// ClearFunction removes every entry of functionName.
func (a *Admin) ClearFunction(ctx context.Context, actor, functionName string) (models.InvalidationResult, error) {
	if err := cachekey.ValidateFunctionName(functionName); err != nil {
		return models.InvalidationResult{}, err
	}
	start := time.Now()
	n, err := a.inv.ClearFunction(ctx, functionName)
	a.record(ctx, models.AuditEvent{
		Operation:    models.OpClearFunction,
		FunctionName: functionName,
		Actor:        actor,
		Count:        n,
	}, start, err)
	return models.InvalidationResult{Count: n}, err
}

// CleanExpired removes logically expired entries.
func (a *Admin) CleanExpired(ctx context.Context, actor string) (models.InvalidationResult, error) {
	start := time.Now()
	n, err := a.inv.CleanExpiredNow(ctx)
	a.record(ctx, models.AuditEvent{Operation: models.OpCleanExpired, Actor: actor, Count: n}, start, err)
	return models.InvalidationResult{Count: n}, err
}

// Warmup runs the configured warmup jobs.
func (a *Admin) Warmup(ctx context.Context, actor string) (models.WarmupResult, error) {
	start := time.Now()
	res, err := a.scheduler.Run(ctx, a.jobs)
	a.record(ctx, models.AuditEvent{
		Operation: models.OpWarmup,
		Actor:     actor,
		Count:     int64(res.TotalSuccess),
		Failures:  int64(res.TotalFailure),
	}, start, err)
	return res, err
}

// WarmupJobs returns the number of configured warmup jobs.
func (a *Admin) WarmupJobs() int { return len(a.jobs) }

func (a *Admin) record(ctx context.Context, ev models.AuditEvent, start time.Time, opErr error) {
	ev.DurationMs = time.Since(start).Milliseconds()
	if opErr != nil {
		ev.Error = opErr.Error()
	}
	// The audit write must outlive a cancelled request.
	if err := a.auditor.Log(context.WithoutCancel(ctx), ev); err != nil {
		a.logger.Warn("audit write failed", zap.String("operation", string(ev.Operation)), zap.Error(err))
	}
}
