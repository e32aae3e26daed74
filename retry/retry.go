// Package retry runs operations with exponential backoff. Only errors
// explicitly marked recoverable are retried; everything else returns
// immediately.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = 1 * time.Second
)

// RecoverableError wraps an error to indicate the operation may succeed if
// retried.
type RecoverableError struct {
	Err error
}

func (e *RecoverableError) Error() string {
	return e.Err.Error()
}

func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// NewRecoverableError marks an error as recoverable.
func NewRecoverableError(err error) *RecoverableError {
	return &RecoverableError{Err: err}
}

// IsRecoverable reports whether the error is marked recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var recoverable *RecoverableError
	return errors.As(err, &recoverable)
}

type config struct {
	maxRetries int
	baseWait   time.Duration
}

// Option customizes retry behavior.
type Option func(*config)

// WithMaxRetries sets the maximum number of attempts.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithBaseWait sets the wait before the second attempt. Subsequent waits
// double, with 10% jitter.
func WithBaseWait(d time.Duration) Option {
	return func(c *config) { c.baseWait = d }
}

// Do executes f, retrying recoverable failures with exponential backoff
// until it succeeds, exhausts its attempts, or the context is canceled.
func Do(ctx context.Context, f func() error, opts ...Option) error {
	cfg := config{
		maxRetries: DefaultMaxRetries,
		baseWait:   DefaultBaseWait,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var lastError error
	for attempt := 0; attempt < cfg.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(cfg.baseWait) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(backoff) * 0.1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}
		err := f()
		if err == nil {
			return nil
		}
		lastError = err
		if !IsRecoverable(err) {
			return err
		}
	}
	return lastError
}
