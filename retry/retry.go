// Package retry re-runs startup operations such as dialing Redis or the database.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type config struct {
	attempts int
	backoff  Backoff
	onRetry  func(attempt int, err error)
}

type Option func(*config)

// Attempts caps the total number of calls, default 3
func Attempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff replaces the default Exponential(100ms, 5s, 0.2)
func WithBackoff(b Backoff) Option {
	return func(c *config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// OnRetry is called before each wait with the failed attempt number
func OnRetry(f func(attempt int, err error)) Option {
	return func(c *config) { c.onRetry = f }
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent stops retrying; Do returns err unwrapped
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Error aggregates the failures of every attempt. errors.Is and errors.As
// look through all of them.
type Error struct {
	Errors []error
}

func (e *Error) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("after %d attempts: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *Error) Unwrap() []error {
	return e.Errors
}

// Last returns the failure of the final attempt
func (e *Error) Last() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

func (e *Error) Attempts() int {
	return len(e.Errors)
}

// Do calls op until it succeeds, returns a Permanent error, the attempts
// run out or ctx ends
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	_, err := DoWithData(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// DoWithData is Do for operations returning a value
func DoWithData[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	cfg := &config{
		attempts: 3,
		backoff:  Exponential(100*time.Millisecond, 5*time.Second, 0.2),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var zero T
	var errs []error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, ctxError(errs, err)
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		var p permanent
		if errors.As(err, &p) {
			return zero, p.err
		}

		errs = append(errs, err)
		if attempt >= cfg.attempts {
			return zero, &Error{Errors: errs}
		}

		if cfg.onRetry != nil {
			cfg.onRetry(attempt, err)
		}

		timer := time.NewTimer(cfg.backoff.Next(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctxError(errs, ctx.Err())
		case <-timer.C:
		}
	}
}

func ctxError(errs []error, ctxErr error) error {
	if len(errs) == 0 {
		return ctxErr
	}
	return &Error{Errors: append(errs, ctxErr)}
}
