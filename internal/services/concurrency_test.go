package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichLimiterBoundsConcurrency(t *testing.T) {
	limiter := newEnrichLimiter(2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		release, err := limiter.acquire(context.Background())
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer release()
			time.Sleep(5 * time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, limiter.Active())
	assert.LessOrEqual(t, limiter.Peak(), 2)
	assert.Greater(t, limiter.Peak(), 0)
}

func TestEnrichLimiterAcquireHonorsContext(t *testing.T) {
	limiter := newEnrichLimiter(1)

	release, err := limiter.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = limiter.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnrichLimiterReleaseIsIdempotent(t *testing.T) {
	limiter := newEnrichLimiter(1)

	release, err := limiter.acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	assert.Equal(t, 0, limiter.Active())

	// Slot must be usable again after a double release
	release2, err := limiter.acquire(context.Background())
	require.NoError(t, err)
	release2()
}
