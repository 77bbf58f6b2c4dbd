package modeladapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/germanamz/invoker/pkg/chats/chat"
	"github.com/germanamz/invoker/pkg/modeladapter/usage"
)

var _ Completer = (*RetryingCompleter)(nil)

// RetryingCompleter wraps a Completer with a per-attempt timeout and retries
// transient failures with exponential backoff and jitter.
type RetryingCompleter struct {
	inner          Completer
	maxRetries     int           // retries after the first attempt (0 = single attempt)
	baseDelay      time.Duration // initial backoff delay
	maxDelay       time.Duration // upper bound on the exponential backoff
	attemptTimeout time.Duration // per-attempt timeout (0 = none)
	log            *slog.Logger

	fallbackTracker usage.Tracker

	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// randFunc returns a random float64 in [0,1); used for jitter. Defaults to rand.Float64.
	randFunc func() float64
}

// RetryOpts configures the RetryingCompleter.
type RetryOpts struct {
	MaxRetries     int           // Retries on transient failure (0 = no retry).
	BaseDelay      time.Duration // Initial backoff delay (default 1s).
	MaxDelay       time.Duration // Cap on the exponential backoff (default 60s). Retry-After may exceed it.
	AttemptTimeout time.Duration // Timeout applied to each attempt (0 = none).
	Logger         *slog.Logger  // Optional logger; defaults to a discarding logger.
}

// NewRetryingCompleter wraps a Completer with retries.
func NewRetryingCompleter(inner Completer, opts RetryOpts) *RetryingCompleter {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 60 * time.Second //nolint:mnd // default backoff cap
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &RetryingCompleter{
		inner:          inner,
		maxRetries:     opts.MaxRetries,
		baseDelay:      opts.BaseDelay,
		maxDelay:       opts.MaxDelay,
		attemptTimeout: opts.AttemptTimeout,
		log:            opts.Logger,
		sleepFunc:      contextSleep,
		randFunc:       rand.Float64,
	}
}

// SetSleepFunc overrides the sleep function (for testing).
func (r *RetryingCompleter) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// SetRandFunc overrides the random number generator (for testing).
func (r *RetryingCompleter) SetRandFunc(fn func() float64) { r.randFunc = fn }

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff returns baseDelay * 2^attempt, capped at maxDelay.
func (r *RetryingCompleter) backoff(attempt int) time.Duration {
	d := float64(r.baseDelay) * math.Pow(2, float64(attempt)) //nolint:mnd // exponential backoff formula
	if d >= float64(r.maxDelay) {
		return r.maxDelay
	}
	return time.Duration(d)
}

// jitter applies ±25% random jitter to a duration.
func (r *RetryingCompleter) jitter(d time.Duration) time.Duration {
	// Scale factor in [0.75, 1.25).
	factor := 0.75 + r.randFunc()*0.5 //nolint:mnd // jitter range: ±25%
	return time.Duration(float64(d) * factor)
}

// attempt runs one bounded call to the inner completer. A per-attempt
// deadline that fires while ctx is still live is reported as transient.
func (r *RetryingCompleter) attempt(ctx context.Context, c *chat.Chat) (Completion, error) {
	if r.attemptTimeout <= 0 {
		return r.inner.Complete(ctx, c)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	out, err := r.inner.Complete(attemptCtx, c)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return Completion{}, &timeoutError{after: r.attemptTimeout, err: err}
	}
	return out, err
}

// Complete implements Completer with retries on transient failure.
func (r *RetryingCompleter) Complete(ctx context.Context, c *chat.Chat) (Completion, error) {
	out, _, err := r.CompleteWithAttempts(ctx, c)
	return out, err
}

// CompleteWithAttempts is Complete that also reports how many attempts the
// call made. The count is per call, so concurrent callers each see their own.
func (r *RetryingCompleter) CompleteWithAttempts(ctx context.Context, c *chat.Chat) (Completion, int, error) {
	var lastErr error
	attempts := 0
	for attempt := range r.maxRetries + 1 {
		attempts = attempt + 1

		out, err := r.attempt(ctx, c)
		if err == nil {
			return out, attempts, nil
		}

		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return Completion{}, attempts, err
		}

		if attempt >= r.maxRetries {
			break
		}

		// Use RetryAfter instead of the capped exponential delay if larger. Apply jitter.
		var retryAfter time.Duration
		var rle *RateLimitError
		if errors.As(err, &rle) {
			retryAfter = rle.RetryAfter
		}
		backoff := r.jitter(max(r.backoff(attempt), retryAfter))

		r.log.WarnContext(ctx, "transient completion failure, retrying",
			"attempt", attempts,
			"max_retries", r.maxRetries,
			"backoff", backoff,
			"error", err,
		)

		if err := r.sleepFunc(ctx, backoff); err != nil {
			return Completion{}, attempts, err
		}
	}

	return Completion{}, attempts, lastErr
}

// UsageTracker forwards to the inner completer if it implements UsageReporter.
func (r *RetryingCompleter) UsageTracker() *usage.Tracker {
	if ur, ok := r.inner.(UsageReporter); ok {
		return ur.UsageTracker()
	}
	return &r.fallbackTracker
}

// timeoutError marks an attempt that exceeded its own deadline.
type timeoutError struct {
	after time.Duration
	err   error
}

func (e *timeoutError) Error() string {
	return "attempt timed out after " + e.after.String() + ": " + e.err.Error()
}

func (e *timeoutError) Unwrap() error { return e.err }

// Timeout and Temporary satisfy net.Error so IsTransient treats the
// attempt timeout like any other transport timeout.
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
