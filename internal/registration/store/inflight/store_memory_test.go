package inflight

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vektorkite/pkg/platform/sentinel"
)

func TestInMemoryGuard_ExclusiveUntilReleased(t *testing.T) {
	g := NewInMemoryGuard()
	ctx := context.Background()

	token, err := g.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	_, err = g.Acquire(ctx, "other", time.Minute)
	assert.NoError(t, err, "keys are independent")

	require.NoError(t, g.Release(ctx, "k", token))
	_, err = g.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err)
}

func TestInMemoryGuard_StaleTokenCannotRelease(t *testing.T) {
	g := NewInMemoryGuard()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	old, err := g.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = g.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err, "expired lease is replaced")

	require.NoError(t, g.Release(ctx, "k", old))
	_, err = g.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, sentinel.ErrConflict, "stale release must not free the new lease")
}

func TestInMemoryGuard_ConcurrentAcquireHasOneWinner(t *testing.T) {
	g := NewInMemoryGuard()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Acquire(context.Background(), "k", time.Minute); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
