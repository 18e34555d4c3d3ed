package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_MinIntervalSpacing(t *testing.T) {
	limiter := New(2, 100*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	var lastDone atomic.Int64

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := limiter.Acquire(ctx)
			if !assert.NoError(t, err) {
				return
			}
			lastDone.Store(int64(time.Since(start)))
			release()
		}()
	}
	wg.Wait()

	// ceil(10/2 - 1) * 100ms
	assert.GreaterOrEqual(t, time.Duration(lastDone.Load()), 400*time.Millisecond)
}

func TestLimiter_MaxConcurrent(t *testing.T) {
	limiter := New(3, 0)
	ctx := context.Background()

	var current, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := limiter.Acquire(ctx)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 0, limiter.InFlight())
	assert.Equal(t, 0, limiter.QueueDepth())
}

func TestLimiter_FIFO(t *testing.T) {
	limiter := New(1, 0)
	ctx := context.Background()

	hold, err := limiter.Acquire(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			release, err := limiter.Acquire(ctx)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			release()
		}(i)
		// Enqueue in a known order.
		want := i + 1
		require.Eventually(t, func() bool { return limiter.QueueDepth() == want }, time.Second, time.Millisecond)
	}

	hold()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLimiter_ContextCancelUnblocksWaiter(t *testing.T) {
	limiter := New(1, 0)

	hold, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	defer hold()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	release, err := limiter.Acquire(ctx)

	assert.Nil(t, release)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, limiter.QueueDepth())
}

func TestLimiter_AlreadyCancelledContext(t *testing.T) {
	limiter := New(1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, limiter.InFlight())
}

func TestLimiter_ClearResolvesWaitersWithError(t *testing.T) {
	limiter := New(1, 0)

	hold, err := limiter.Acquire(context.Background())
	require.NoError(t, err)

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := limiter.Acquire(context.Background())
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return limiter.QueueDepth() == 3 }, time.Second, time.Millisecond)

	limiter.Clear()

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrCleared)
		case <-time.After(time.Second):
			t.Fatal("waiter not resolved by Clear")
		}
	}
	assert.Equal(t, 0, limiter.QueueDepth())

	// The holder is unaffected and the limiter keeps working.
	assert.Equal(t, 1, limiter.InFlight())
	hold()
	release, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestLimiter_ReleaseIsIdempotent(t *testing.T) {
	limiter := New(1, 0)

	release, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	assert.Equal(t, 0, limiter.InFlight())
}

func TestNew_Defaults(t *testing.T) {
	limiter := New(0, -time.Second, WithName("test"))
	assert.Equal(t, 1, limiter.maxConcurrent)
	assert.Equal(t, time.Duration(0), limiter.minInterval)
	assert.Equal(t, "test", limiter.name)
}
