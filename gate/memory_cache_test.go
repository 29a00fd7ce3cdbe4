package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetOrDecide(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	calls := 0
	decide := func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	}

	allowed, err := c.GetOrDecide(ctx, "10.0.0.1", time.Minute, decide)
	require.NoError(t, err)
	assert.True(t, allowed)

	// cached, decide is not run again
	allowed, err = c.GetOrDecide(ctx, "10.0.0.1", time.Minute, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, calls)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryCache_DenialIsCached(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	var calls int
	decide := func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	}
	for i := 0; i < 3; i++ {
		allowed, err := c.GetOrDecide(ctx, "k", time.Minute, decide)
		require.NoError(t, err)
		assert.False(t, allowed)
	}
	assert.Equal(t, 1, calls)
}

func TestMemoryCache_ErrorNotCached(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.GetOrDecide(ctx, "k", time.Minute, func(ctx context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)

	allowed, err := c.GetOrDecide(ctx, "k", time.Minute, func(ctx context.Context) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	var calls int
	decide := func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	}
	_, err := c.GetOrDecide(ctx, "k", 20*time.Millisecond, decide)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = c.GetOrDecide(ctx, "k", 20*time.Millisecond, decide)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMemoryCache_ConcurrentMissDecidesOnce(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	decide := func(ctx context.Context) (bool, error) {
		calls.Add(1)
		<-release
		return true, nil
	}

	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := c.GetOrDecide(ctx, "k", time.Minute, decide)
			assert.NoError(t, err)
			results <- allowed
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), calls.Load())
	for allowed := range results {
		assert.True(t, allowed)
	}
}

func TestMemoryCache_ForgetAndPurge(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()
	allow := func(ctx context.Context) (bool, error) { return true, nil }

	for _, k := range []string{"a", "b", "c"} {
		_, err := c.GetOrDecide(ctx, k, time.Minute, allow)
		require.NoError(t, err)
	}

	require.NoError(t, c.Forget(ctx, "a"))
	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, c.Purge(ctx))
	n, err = c.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, c.Forget(cancelled, "b"), context.Canceled)
	assert.ErrorIs(t, c.Purge(cancelled), context.Canceled)
	_, err = c.Len(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
