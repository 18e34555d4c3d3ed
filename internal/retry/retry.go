// Package retry runs provider operations with exponential backoff and
// kind-aware retry decisions.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/review-insights/review-insights-bot/internal/apierr"
	"github.com/review-insights/review-insights-bot/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Error is returned when an operation fails terminally or runs out of
// retries. It unwraps to the last underlying error.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Policy describes how a failing operation is retried
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64

	// Classify decides whether an error is worth another attempt.
	// Defaults to apierr.IsRetryable.
	Classify func(error) bool

	// Notify is called before each backoff sleep.
	Notify func(err error, attempt int, delay time.Duration)
}

// DefaultPolicy returns the policy used when none is configured
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Factor:       2,
	}
}

// Delay returns the backoff before retry n (0-indexed):
// min(InitialDelay * Factor^n, MaxDelay)
func (p Policy) Delay(n int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.factor(), float64(n))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

func (p Policy) factor() float64 {
	if p.Factor <= 0 {
		return 2
	}
	return p.Factor
}

func (p Policy) classify(err error) bool {
	if p.Classify != nil {
		return p.Classify(err)
	}
	return apierr.IsRetryable(err)
}

// newBackOff builds the delay schedule. No jitter is applied so the delays
// follow Delay exactly.
func (p Policy) newBackOff(lastErr *error) backoff.BackOff {
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Duration(math.MaxInt64)
	}

	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          p.factor(),
		MaxInterval:         maxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()

	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return backoff.WithMaxRetries(&hintedBackOff{BackOff: exp, lastErr: lastErr, max: maxDelay}, uint64(maxRetries))
}

// hintedBackOff stretches a delay to the provider's retry-after hint
type hintedBackOff struct {
	backoff.BackOff
	lastErr *error
	max     time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if hint := apierr.RetryAfterHint(*h.lastErr); hint > next {
		next = hint
		if next > h.max {
			next = h.max
		}
	}
	return next
}

// Do runs op until it succeeds, fails with a non-retryable error, runs out
// of retries, or ctx is done. Backoff sleeps happen between invocations, so
// anything op acquires must be released before it returns.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := 0
	var lastErr error

	operation := func() error {
		attempts++
		err := op(ctx)
		lastErr = err
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !p.classify(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		metrics.RetryAttempts.WithLabelValues(apierr.KindOf(err).String()).Inc()
		logrus.WithFields(logrus.Fields{
			"attempt": attempts,
			"delay":   delay.String(),
		}).Debugf("Operation failed, retrying: %v", err)
		if p.Notify != nil {
			p.Notify(err, attempts, delay)
		}
	}

	b := backoff.WithContext(p.newBackOff(&lastErr), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if lastErr == nil {
			// ctx finished before the first attempt returned
			lastErr = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil && lastErr != ctxErr {
			return &Error{Attempts: attempts, Err: fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)}
		}
		return &Error{Attempts: attempts, Err: lastErr}
	}

	return nil
}

// Value is Do for operations that produce a result
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
