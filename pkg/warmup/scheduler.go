// Package warmup pre-populates the cache for predictably popular requests.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/metrics"
	"github.com/academy-ai/aicache/pkg/models"
	"github.com/academy-ai/aicache/pkg/params"
)

// DefaultConcurrency is the worker pool size when none is configured.
const DefaultConcurrency = 4

// Job is one invocation to pre-compute.
type Job struct {
	FunctionName string
	Params       params.Value
	Compute      cache.ComputeFunc
}

// Scheduler runs warmup batches through a cache.Service.
type Scheduler struct {
	svc         *cache.Service
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
	metrics     *metrics.Cache
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConcurrency bounds the number of jobs in flight. Values below 1 are
// ignored.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n >= 1 {
			s.concurrency = n
		}
	}
}

// WithRequestsPerMinute limits downstream compute calls. Zero disables the
// limit.
func WithRequestsPerMinute(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics records job outcomes and run durations on m.
func WithMetrics(m *metrics.Cache) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a Scheduler writing through svc.
func New(svc *cache.Service, opts ...Option) *Scheduler {
	s := &Scheduler{
		svc:         svc,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("warmup")
	return s
}

type outcome int

const (
	success outcome = iota
	failure
	skipped
	abandoned
)

// tally accumulates job outcomes from concurrent workers.
type tally struct {
	mu  sync.Mutex
	res models.WarmupResult
}

func (t *tally) add(o outcome, job Job, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch o {
	case success:
		t.res.TotalSuccess++
	case skipped:
		t.res.Skipped++
	case abandoned:
		t.res.Abandoned++
	case failure:
		t.res.TotalFailure++
		t.res.Failures = append(t.res.Failures, models.JobFailure{
			FunctionName: job.FunctionName,
			Params:       job.Params.String(),
			Error:        err.Error(),
		})
	}
}

// Run processes jobs with bounded concurrency. Fresh entries are skipped,
// misses are computed and stored. A failing job is recorded and the batch
// continues.
//
// When ctx is cancelled no further job starts; jobs not yet started are
// counted as abandoned and Run returns the partial result with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, jobs []Job) (models.WarmupResult, error) {
	start := time.Now()
	t := &tally{res: models.WarmupResult{RunID: uuid.NewString()}}
	log := s.logger.With(zap.String("run_id", t.res.RunID))
	log.Info("warmup started", zap.Int("jobs", len(jobs)), zap.Int("concurrency", s.concurrency))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, job := range jobs {
		if ctx.Err() != nil {
			for range jobs[i:] {
				t.add(abandoned, Job{}, nil)
				s.metrics.WarmupJob(metrics.OutcomeAbandoned)
			}
			break
		}
		g.Go(func() error {
			o, err := s.runJob(ctx, job)
			t.add(o, job, err)
			s.metrics.WarmupJob(outcomeLabel(o))
			if o == failure {
				log.Warn("warmup job failed",
					zap.String("function", job.FunctionName),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := t.res
	res.Duration = time.Since(start)
	s.metrics.WarmupRun(res.Duration.Seconds())
	log.Info("warmup finished",
		zap.Int("success", res.TotalSuccess),
		zap.Int("failure", res.TotalFailure),
		zap.Int("skipped", res.Skipped),
		zap.Int("abandoned", res.Abandoned),
		zap.Duration("duration", res.Duration),
	)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job) (outcome, error) {
	if ctx.Err() != nil {
		return abandoned, nil
	}
	if job.Compute == nil {
		return failure, errors.New("no compute function")
	}

	l, err := s.svc.TryGet(ctx, job.FunctionName, job.Params)
	if err != nil {
		return failure, err
	}
	if l.Hit {
		return skipped, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return abandoned, nil
			}
			return failure, fmt.Errorf("rate limit: %w", err)
		}
	}

	payload, err := job.Compute(ctx)
	if err != nil {
		return failure, fmt.Errorf("compute: %w", err)
	}
	if err := s.svc.Store(ctx, job.FunctionName, job.Params, payload); err != nil {
		return failure, err
	}
	return success, nil
}

func outcomeLabel(o outcome) string {
	switch o {
	case success:
		return metrics.OutcomeSuccess
	case skipped:
		return metrics.OutcomeSkipped
	case abandoned:
		return metrics.OutcomeAbandoned
	default:
		return metrics.OutcomeFailure
	}
}
