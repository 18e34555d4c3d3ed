// Package ratelimit provides FIFO admission control shared by every caller
// of one provider credential.
package ratelimit

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/review-insights/review-insights-bot/internal/metrics"
	"github.com/sirupsen/logrus"
)

// ErrCleared is returned to waiters discarded by Clear
var ErrCleared = errors.New("rate limiter cleared")

// Limiter admits at most maxConcurrent holders at a time, with at least
// minInterval between successive admissions. Waiters are admitted in
// arrival order.
type Limiter struct {
	name          string
	maxConcurrent int
	minInterval   time.Duration

	mu        sync.Mutex
	inFlight  int
	lastAdmit time.Time
	queue     *list.List
	timer     *time.Timer
}

type waiter struct {
	ready chan error // buffered, receives exactly one value
	elem  *list.Element
}

// Option configures a Limiter
type Option func(*Limiter)

// WithName labels the limiter in exported metrics
func WithName(name string) Option {
	return func(l *Limiter) {
		l.name = name
	}
}

// New creates a limiter. maxConcurrent below 1 is treated as 1.
func New(maxConcurrent int, minInterval time.Duration, opts ...Option) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if minInterval < 0 {
		minInterval = 0
	}

	l := &Limiter{
		name:          "provider",
		maxConcurrent: maxConcurrent,
		minInterval:   minInterval,
		queue:         list.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until the caller is admitted, ctx is done, or the limiter
// is cleared. On success the returned release func must be called once the
// guarded call has finished; calling it more than once is a no-op.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := &waiter{ready: make(chan error, 1)}

	l.mu.Lock()
	w.elem = l.queue.PushBack(w)
	l.dispatchLocked()
	l.reportLocked()
	l.mu.Unlock()

	select {
	case err := <-w.ready:
		if err != nil {
			return nil, err
		}
		return l.releaser(), nil
	case <-ctx.Done():
		l.mu.Lock()
		if w.elem != nil {
			l.queue.Remove(w.elem)
			w.elem = nil
			l.reportLocked()
			l.mu.Unlock()
			return nil, ctx.Err()
		}
		l.mu.Unlock()

		// Admitted or cleared while ctx was being cancelled.
		if err := <-w.ready; err == nil {
			l.release()
		}
		return nil, ctx.Err()
	}
}

// QueueDepth returns the number of callers waiting for admission
func (l *Limiter) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// InFlight returns the number of admitted callers that have not released
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Clear discards all pending waiters; each one returns ErrCleared.
// Callers already admitted keep their slot until they release it.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	discarded := l.queue.Len()
	for e := l.queue.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.elem = nil
		w.ready <- ErrCleared
	}
	l.queue.Init()

	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.reportLocked()

	if discarded > 0 {
		logrus.Debugf("Rate limiter %s cleared %d pending waiters", l.name, discarded)
	}
}

func (l *Limiter) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(l.release)
	}
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inFlight--
	l.dispatchLocked()
	l.reportLocked()
}

// dispatchLocked admits queued waiters from the front while capacity and
// spacing allow, arming a timer when only the interval is in the way.
func (l *Limiter) dispatchLocked() {
	for l.queue.Len() > 0 && l.inFlight < l.maxConcurrent {
		if l.minInterval > 0 && !l.lastAdmit.IsZero() {
			if wait := l.minInterval - time.Since(l.lastAdmit); wait > 0 {
				if l.timer == nil {
					l.timer = time.AfterFunc(wait, l.onTimer)
				}
				return
			}
		}

		w := l.queue.Remove(l.queue.Front()).(*waiter)
		w.elem = nil
		l.inFlight++
		l.lastAdmit = time.Now()
		w.ready <- nil
	}
}

func (l *Limiter) onTimer() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.timer = nil
	l.dispatchLocked()
	l.reportLocked()
}

func (l *Limiter) reportLocked() {
	metrics.LimiterGauges.WithLabelValues(l.name, "queued").Set(float64(l.queue.Len()))
	metrics.LimiterGauges.WithLabelValues(l.name, "in_flight").Set(float64(l.inFlight))
}
