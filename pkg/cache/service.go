package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/academy-ai/aicache/pkg/cachekey"
	"github.com/academy-ai/aicache/pkg/metrics"
	"github.com/academy-ai/aicache/pkg/models"
	"github.com/academy-ai/aicache/pkg/params"
	"github.com/academy-ai/aicache/pkg/policy"
)

// Lookup is the verdict of TryGet.
type Lookup struct {
	Hit     bool
	Key     string
	Payload []byte
}

// ComputeFunc produces the payload for a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Service is the entry point features use to read and write cached
// AI-generation results.
type Service struct {
	store   Store
	policy  *policy.Table
	clock   func() time.Time
	logger  *zap.Logger
	metrics *metrics.Cache
	flight  *singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records lookups, writes and store failures on m.
func WithMetrics(m *metrics.Cache) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSingleFlight makes concurrent GetOrCompute misses on the same key
// share one computation.
func WithSingleFlight() Option {
	return func(s *Service) { s.flight = &singleflight.Group{} }
}

// NewService creates a Service over store and table.
func NewService(store Store, table *policy.Table, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: table,
		clock:  time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("cache")
	return s
}

// Policy returns the policy table the service stores with.
func (s *Service) Policy() *policy.Table { return s.policy }

// TryGet looks up a fresh entry for (functionName, p).
//
// Expired entries are a miss; they are neither counted nor deleted. Store
// failures are logged and reported as a miss so the caller falls through to
// direct computation. Only ErrInvalidParameters is returned as an error.
func (s *Service) TryGet(ctx context.Context, functionName string, p params.Value) (Lookup, error) {
	key, err := cachekey.Key(functionName, p)
	if err != nil {
		return Lookup{}, err
	}
	return s.lookup(ctx, functionName, key), nil
}

func (s *Service) lookup(ctx context.Context, functionName, key string) Lookup {
	entry, err := s.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		s.metrics.Lookup(functionName, metrics.ResultMiss)
		return Lookup{Key: key}
	case err != nil:
		s.metrics.Lookup(functionName, metrics.ResultError)
		s.metrics.StoreError("get")
		s.logger.Warn("cache read failed, treating as miss",
			zap.String("function", functionName),
			zap.String("key", key),
			zap.Error(err),
		)
		return Lookup{Key: key}
	}

	if entry.Expired(s.clock()) {
		s.metrics.Lookup(functionName, metrics.ResultExpired)
		return Lookup{Key: key}
	}

	if err := s.store.IncrementHit(ctx, key); err != nil {
		s.metrics.StoreError("increment_hit")
		s.logger.Warn("hit count increment failed",
			zap.String("function", functionName),
			zap.String("key", key),
			zap.Error(err),
		)
	}
	s.metrics.Lookup(functionName, metrics.ResultHit)
	return Lookup{Hit: true, Key: key, Payload: entry.Payload}
}

// Store caches payload for (functionName, p) with the function's TTL,
// replacing any previous entry and resetting its hit count.
func (s *Service) Store(ctx context.Context, functionName string, p params.Value, payload []byte) error {
	key, err := cachekey.Key(functionName, p)
	if err != nil {
		return err
	}
	return s.put(ctx, functionName, key, payload)
}

func (s *Service) put(ctx context.Context, functionName, key string, payload []byte) error {
	now := s.clock()
	entry := &models.CacheEntry{
		Key:          key,
		FunctionName: functionName,
		Payload:      payload,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.policy.TTLFor(functionName)),
	}
	if err := s.store.Put(ctx, entry); err != nil {
		s.metrics.StoreError("put")
		s.logger.Warn("cache write failed",
			zap.String("function", functionName),
			zap.String("key", key),
			zap.Error(err),
		)
		if !errors.Is(err, ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return err
	}
	s.metrics.Write(functionName)
	return nil
}

// GetOrCompute returns the cached payload for (functionName, p) or runs
// compute and caches its result. The boolean reports a cache hit.
//
// Compute errors are returned and never cached. A failed cache write is
// logged and dropped.
//
// With single-flight, concurrent misses on one key share a computation that
// runs detached from any caller's cancellation. Each caller still returns
// as soon as its own ctx is done.
func (s *Service) GetOrCompute(ctx context.Context, functionName string, p params.Value, compute ComputeFunc) ([]byte, bool, error) {
	key, err := cachekey.Key(functionName, p)
	if err != nil {
		return nil, false, err
	}
	if l := s.lookup(ctx, functionName, key); l.Hit {
		return l.Payload, true, nil
	}

	run := func(ctx context.Context) ([]byte, error) {
		payload, err := compute(ctx)
		s.metrics.Compute(functionName, err)
		if err != nil {
			return nil, err
		}
		_ = s.put(ctx, functionName, key, payload)
		return payload, nil
	}

	if s.flight == nil {
		payload, err := run(ctx)
		return payload, false, err
	}

	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		return run(shared)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		return r.Val.([]byte), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}
