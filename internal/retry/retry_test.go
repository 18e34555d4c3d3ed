package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/review-insights/review-insights-bot/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Factor:       2,
	}
}

func TestPolicy_SucceedsAfterRetryableFailures(t *testing.T) {
	tests := []struct {
		name     string
		failures int
	}{
		{name: "No failures", failures: 0},
		{name: "One failure", failures: 1},
		{name: "Two failures", failures: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			result, err := Value(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", apierr.New(apierr.KindNetwork, "poll", "connection reset")
				}
				return "ok", nil
			})

			require.NoError(t, err)
			assert.Equal(t, "ok", result)
			assert.Equal(t, tt.failures+1, calls)
		})
	}
}

func TestPolicy_AlwaysFailingExhaustsRetries(t *testing.T) {
	calls := 0
	cause := apierr.New(apierr.KindRateLimit, "submit", "too many requests")

	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return cause
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)

	var retryErr *Error
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, 4, retryErr.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, apierr.KindRateLimit, apierr.KindOf(err))
}

func TestPolicy_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0

	err := fastPolicy(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apierr.New(apierr.KindAuthentication, "submit", "bad credentials")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var retryErr *Error
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, 1, retryErr.Attempts)
	assert.True(t, apierr.Is(err, apierr.KindAuthentication))
}

func TestPolicy_ZeroRetries(t *testing.T) {
	calls := 0
	err := fastPolicy(0).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apierr.New(apierr.KindNetwork, "poll", "reset")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_CustomClassifier(t *testing.T) {
	calls := 0
	p := fastPolicy(2)
	p.Classify = func(error) bool { return true }

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("unclassified")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_ContextCancelDuringBackoff(t *testing.T) {
	p := Policy{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Factor: 2}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return apierr.New(apierr.KindNetwork, "poll", "reset")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPolicy_NotifyReportsDelays(t *testing.T) {
	p := Policy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 3 * time.Millisecond, Factor: 2}
	var delays []time.Duration
	p.Notify = func(err error, attempt int, delay time.Duration) {
		delays = append(delays, delay)
	}

	_ = p.Do(context.Background(), func(ctx context.Context) error {
		return apierr.New(apierr.KindNetwork, "poll", "reset")
	})

	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, delays)
}

func TestPolicy_RetryAfterHint(t *testing.T) {
	p := Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: 50 * time.Millisecond, Factor: 2}
	var delays []time.Duration
	p.Notify = func(err error, attempt int, delay time.Duration) {
		delays = append(delays, delay)
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &apierr.Error{Kind: apierr.KindRateLimit, Op: "poll", RetryAfter: 20 * time.Millisecond}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, delays)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond, Factor: 2}

	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))
	assert.Equal(t, 500*time.Millisecond, p.Delay(3))
	assert.Equal(t, 500*time.Millisecond, p.Delay(10))
}

func TestPolicy_BackOffScheduleMatchesDelay(t *testing.T) {
	p := Policy{MaxRetries: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond, Factor: 2}
	var lastErr error
	b := p.newBackOff(&lastErr)

	for n := 0; n < 5; n++ {
		assert.Equal(t, p.Delay(n), b.NextBackOff(), "retry %d", n)
	}
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestError_Message(t *testing.T) {
	err := &Error{Attempts: 4, Err: errors.New("boom")}
	assert.Equal(t, "failed after 4 attempt(s): boom", err.Error())
}
