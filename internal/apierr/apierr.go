// Package apierr classifies failures returned by the review data provider.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Kind is the error class used for retry decisions
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindValidation
	KindRateLimit
	KindNetwork
	KindTimeout
	KindTaskNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate_limit"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindTaskNotFound:
		return "task_not_found"
	default:
		return "unknown"
	}
}

// Retryable reports whether an error of this kind may succeed on a later attempt
func (k Kind) Retryable() bool {
	return k == KindRateLimit || k == KindNetwork || k == KindTimeout
}

// Error is a classified provider failure
type Error struct {
	Kind       Kind
	Op         string // "submit", "poll", ...
	Code       int    // provider status code or HTTP status, 0 when not applicable
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s %s error (code %d): %s", e.Op, e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s %s error: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies an underlying error
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in the chain
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable is the default retry classifier. Caller cancellation is never
// retried; unclassified errors are not retried either.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err).Retryable()
}

// RetryAfterHint returns the provider supplied retry delay, if any
func RetryAfterHint(err error) time.Duration {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// FromTransport classifies a connection-level failure. ctxErr is the caller
// context's error at the time of failure; when set the caller gave up and
// the error is returned as-is.
func FromTransport(op string, err error, ctxErr error) error {
	if ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(KindTimeout, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, op, err)
	}
	return Wrap(KindNetwork, op, err)
}

// FromHTTPStatus maps a non-2xx HTTP status to a classified error
func FromHTTPStatus(op string, status int, body string, retryAfter time.Duration) *Error {
	e := &Error{Op: op, Code: status, Message: body}
	switch {
	case status == 401 || status == 403:
		e.Kind = KindAuthentication
	case status == 404:
		e.Kind = KindTaskNotFound
	case status == 408:
		e.Kind = KindTimeout
	case status == 429:
		e.Kind = KindRateLimit
		e.RetryAfter = retryAfter
	case status >= 500:
		e.Kind = KindNetwork
	default:
		e.Kind = KindValidation
	}
	return e
}

// FromProviderStatus maps a provider envelope status code (5 digits) to a
// classified error.
func FromProviderStatus(op string, code int, message string) *Error {
	e := &Error{Op: op, Code: code, Message: message}
	switch {
	case code >= 40100 && code < 40200:
		e.Kind = KindAuthentication
	case code == 40202:
		e.Kind = KindRateLimit
	case code == 40400 || code == 40401:
		e.Kind = KindTaskNotFound
	case code >= 50000:
		e.Kind = KindNetwork
	default:
		e.Kind = KindValidation
	}
	return e
}
