package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy describes exponential backoff for transient failures.
// Attempt n (1-based) waits BaseDelay*Multiplier^(n-1), capped at MaxDelay
// and spread by ±Jitter, before attempt n+1.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first; >= 1
	BaseDelay   time.Duration // wait before the second attempt
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64 // randomization factor in [0,1]
}

// DefaultRetryPolicy waits 1s, 2s, 4s, 8s between five attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		Jitter:      0.5,
	}
}

// Validate rejects policies that cannot run.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("retry policy: max attempts %d must be >= 1", p.MaxAttempts)
	case p.BaseDelay < 0 || p.MaxDelay < 0:
		return errors.New("retry policy: delays must not be negative")
	case p.Jitter < 0 || p.Jitter > 1:
		return fmt.Errorf("retry policy: jitter %v must be within [0,1]", p.Jitter)
	}
	return nil
}

// ExhaustedError is returned once every attempt failed transiently.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// RetryNotice describes a failed attempt that will be retried.
type RetryNotice struct {
	Attempt int
	Err     error
	Wait    time.Duration
}

// Do runs op until it succeeds, fails permanently or the attempts run out.
// Only errors satisfying IsTransient are retried. notify may be nil.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, notify func(RetryNotice)) error {
	if err := p.Validate(); err != nil {
		return err
	}
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(ctx)
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(p.backOff(), ctx), func(err error, wait time.Duration) {
		if notify != nil {
			notify(RetryNotice{Attempt: attempts, Err: err, Wait: wait})
		}
	})
	if err == nil {
		return nil
	}
	if IsTransient(err) && attempts >= p.MaxAttempts {
		return &ExhaustedError{Attempts: attempts, Err: err}
	}
	return err
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval < p.BaseDelay {
		b.MaxInterval = p.BaseDelay
	}
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
}

// ─── completer decorator ─────────────────────────────────────────────────────

// Completer is a single completion attempt; *Router implements it.
type Completer interface {
	Complete(ctx context.Context, model, prompt string, stream bool) (string, error)
}

// RetryingCompleter wraps a Completer with a RetryPolicy.
type RetryingCompleter struct {
	next    Completer
	policy  RetryPolicy
	logger  *slog.Logger
	onRetry func(model string)
}

// RetryOption customises a RetryingCompleter.
type RetryOption func(*RetryingCompleter)

// WithRetryLogger logs every retried attempt at warn level.
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(c *RetryingCompleter) { c.logger = l }
}

// WithRetryHook is called once per retried attempt, e.g. to count retries.
func WithRetryHook(fn func(model string)) RetryOption {
	return func(c *RetryingCompleter) { c.onRetry = fn }
}

// NewRetryingCompleter decorates next with policy.
func NewRetryingCompleter(next Completer, policy RetryPolicy, opts ...RetryOption) *RetryingCompleter {
	c := &RetryingCompleter{next: next, policy: policy, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete calls the wrapped completer under the retry policy.
func (c *RetryingCompleter) Complete(ctx context.Context, model, prompt string, stream bool) (string, error) {
	var out string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		text, err := c.next.Complete(ctx, model, prompt, stream)
		if err != nil {
			return err
		}
		out = text
		return nil
	}, func(n RetryNotice) {
		c.logger.Warn("completion retry",
			"model", model,
			"attempt", n.Attempt,
			"wait", n.Wait,
			"error", n.Err,
		)
		if c.onRetry != nil {
			c.onRetry(model)
		}
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
