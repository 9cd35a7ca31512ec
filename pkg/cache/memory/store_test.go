package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/models"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestPayloadIsCopied(t *testing.T) {
	s := New()
	ctx := context.Background()

	payload := []byte("original")
	require.NoError(t, s.Put(ctx, &models.CacheEntry{
		Key: "k", FunctionName: "matchReport", Payload: payload,
		CreatedAt: t0, ExpiresAt: t0.Add(time.Hour),
	}))
	payload[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got.Payload))

	got.Payload[0] = 'Y'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "original", string(again.Payload))
}

func TestSetUnavailable(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.SetUnavailable(true)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrStoreUnavailable)
	_, err = s.DeleteAll(ctx)
	assert.ErrorIs(t, err, cache.ErrStoreUnavailable)

	s.SetUnavailable(false)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Put(ctx, &models.CacheEntry{Key: "k", CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)})
	assert.ErrorIs(t, err, cache.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, cache.ErrNotFound, "a cancelled put must not write")
}

func TestDeleteExpiredBoundary(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, &models.CacheEntry{Key: "a", FunctionName: "f", CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)})
	_ = s.Put(ctx, &models.CacheEntry{Key: "b", FunctionName: "f", CreatedAt: t0, ExpiresAt: t0.Add(2 * time.Hour)})

	n, err := s.DeleteExpired(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stats, err := s.StatsByFunction(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.FunctionStats{Count: 1}, stats["f"])
}
