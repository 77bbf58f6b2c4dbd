package modeladapter_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/germanamz/invoker/pkg/chats/chat"
	"github.com/germanamz/invoker/pkg/chats/message"
	"github.com/germanamz/invoker/pkg/modeladapter"
	"github.com/germanamz/invoker/pkg/modeladapter/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter is a test double for modeladapter.Completer that also
// implements UsageReporter.
type fakeCompleter struct {
	tracker usage.Tracker
	handler func(ctx context.Context, c *chat.Chat) (modeladapter.Completion, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, c *chat.Chat) (modeladapter.Completion, error) {
	return f.handler(ctx, c)
}

func (f *fakeCompleter) UsageTracker() *usage.Tracker { return &f.tracker }

func newRetrying(fc modeladapter.Completer, opts modeladapter.RetryOpts, sleeps *[]time.Duration) *modeladapter.RetryingCompleter {
	r := modeladapter.NewRetryingCompleter(fc, opts)
	r.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	})
	r.SetRandFunc(func() float64 { return 0.5 }) // zero jitter
	return r
}

func TestRetryingCompleter_PassthroughOnSuccess(t *testing.T) {
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			return modeladapter.Completion{Text: "bonjour"}, nil
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{MaxRetries: 2}, &sleeps)

	out, attempts, err := r.CompleteWithAttempts(context.Background(), chat.New())
	require.NoError(t, err)
	assert.Equal(t, "bonjour", out.Text)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sleeps)
}

func TestRetryingCompleter_TwoTransientFailuresThenSuccess(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			if calls.Add(1) <= 2 {
				return modeladapter.Completion{}, &modeladapter.StatusError{StatusCode: 503, Body: "unavailable"}
			}
			return modeladapter.Completion{Text: "ok"}, nil
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{MaxRetries: 2, BaseDelay: time.Millisecond}, &sleeps)

	out, attempts, err := r.CompleteWithAttempts(context.Background(), chat.New())
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, sleeps)
}

func TestRetryingCompleter_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			calls.Add(1)
			return modeladapter.Completion{}, &modeladapter.RateLimitError{Body: "slow down"}
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{MaxRetries: 2, BaseDelay: time.Millisecond}, &sleeps)

	_, attempts, err := r.CompleteWithAttempts(context.Background(), chat.New())

	var rle *modeladapter.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, attempts)
	assert.Len(t, sleeps, 2)
}

func TestRetryingCompleter_ZeroRetriesSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			calls.Add(1)
			return modeladapter.Completion{}, &modeladapter.StatusError{StatusCode: 500}
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{}, &sleeps)

	_, err := r.Complete(context.Background(), chat.New())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, sleeps)
}

func TestRetryingCompleter_TerminalErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			calls.Add(1)
			return modeladapter.Completion{}, fmt.Errorf("gemini: %w", &modeladapter.StatusError{StatusCode: 403, Body: "denied"})
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{MaxRetries: 5}, &sleeps)

	_, err := r.Complete(context.Background(), chat.New())
	assert.ErrorContains(t, err, "unexpected status 403")
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, sleeps)
}

func TestRetryingCompleter_RetryAfterWinsWhenLarger(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			if calls.Add(1) == 1 {
				return modeladapter.Completion{}, &modeladapter.RateLimitError{RetryAfter: 5 * time.Second}
			}
			return modeladapter.Completion{Text: "ok"}, nil
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{MaxRetries: 1, BaseDelay: time.Millisecond}, &sleeps)

	_, err := r.Complete(context.Background(), chat.New())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeps)
}

func TestRetryingCompleter_Jitter(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			if calls.Add(1) == 1 {
				return modeladapter.Completion{}, &modeladapter.StatusError{StatusCode: 502}
			}
			return modeladapter.Completion{}, nil
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{MaxRetries: 1, BaseDelay: 100 * time.Millisecond}, &sleeps)
	r.SetRandFunc(func() float64 { return 0 }) // lower bound: 0.75x

	_, err := r.Complete(context.Background(), chat.New())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{75 * time.Millisecond}, sleeps)
}

func TestRetryingCompleter_SleepCancelled(t *testing.T) {
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			return modeladapter.Completion{}, &modeladapter.StatusError{StatusCode: 503}
		},
	}

	r := modeladapter.NewRetryingCompleter(fc, modeladapter.RetryOpts{MaxRetries: 3})
	r.SetSleepFunc(func(_ context.Context, _ time.Duration) error {
		return context.Canceled
	})

	_, attempts, err := r.CompleteWithAttempts(context.Background(), chat.New())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetryingCompleter_ParentCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	fc := &fakeCompleter{
		handler: func(ctx context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			calls.Add(1)
			cancel()
			return modeladapter.Completion{}, fmt.Errorf("do request: %w", ctx.Err())
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{MaxRetries: 3}, &sleeps)

	_, err := r.Complete(ctx, chat.New())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryingCompleter_AttemptTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{
		handler: func(ctx context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			if calls.Add(1) == 1 {
				<-ctx.Done()
				return modeladapter.Completion{}, fmt.Errorf("do request: %w", ctx.Err())
			}
			return modeladapter.Completion{Text: "late but fine"}, nil
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{
		MaxRetries:     1,
		BaseDelay:      time.Millisecond,
		AttemptTimeout: 10 * time.Millisecond,
	}, &sleeps)

	out, err := r.Complete(context.Background(), chat.New())
	require.NoError(t, err)
	assert.Equal(t, "late but fine", out.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryingCompleter_AttemptTimeoutExhausted(t *testing.T) {
	fc := &fakeCompleter{
		handler: func(ctx context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			<-ctx.Done()
			return modeladapter.Completion{}, fmt.Errorf("do request: %w", ctx.Err())
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{AttemptTimeout: 5 * time.Millisecond}, &sleeps)

	_, err := r.Complete(context.Background(), chat.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "attempt timed out after 5ms")
}

func TestRetryingCompleter_BackoffIsCapped(t *testing.T) {
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			return modeladapter.Completion{}, &modeladapter.StatusError{StatusCode: 503}
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{MaxRetries: 40, BaseDelay: time.Second}, &sleeps)

	_, attempts, err := r.CompleteWithAttempts(context.Background(), chat.New())
	require.Error(t, err)
	assert.Equal(t, 41, attempts)
	require.Len(t, sleeps, 40)
	for i, d := range sleeps {
		assert.Positive(t, d, "sleep %d", i)
		assert.LessOrEqual(t, d, 60*time.Second, "sleep %d", i)
	}
	assert.Equal(t, 60*time.Second, sleeps[len(sleeps)-1])
}

func TestRetryingCompleter_CustomMaxDelay(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{
		handler: func(_ context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
			if calls.Add(1) <= 3 {
				return modeladapter.Completion{}, &modeladapter.StatusError{StatusCode: 500}
			}
			return modeladapter.Completion{}, nil
		},
	}

	var sleeps []time.Duration
	r := newRetrying(fc, modeladapter.RetryOpts{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   3 * time.Millisecond,
	}, &sleeps)

	_, err := r.Complete(context.Background(), chat.New())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, sleeps)
}

func TestRetryingCompleter_ConcurrentAttemptCounts(t *testing.T) {
	fc := &fakeCompleter{
		handler: func(_ context.Context, c *chat.Chat) (modeladapter.Completion, error) {
			if len(c.Turns()) == 0 {
				return modeladapter.Completion{}, nil
			}
			return modeladapter.Completion{}, &modeladapter.StatusError{StatusCode: 503}
		},
	}

	r := modeladapter.NewRetryingCompleter(fc, modeladapter.RetryOpts{MaxRetries: 4})
	r.SetSleepFunc(func(context.Context, time.Duration) error { return nil })

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, attempts, err := r.CompleteWithAttempts(context.Background(), chat.New())
			assert.NoError(t, err)
			assert.Equal(t, 1, attempts)
		}()
		go func() {
			defer wg.Done()
			_, attempts, err := r.CompleteWithAttempts(context.Background(), chat.New(message.Human("hi")))
			assert.Error(t, err)
			assert.Equal(t, 5, attempts)
		}()
	}
	wg.Wait()
}

type postingCompleter struct {
	modeladapter.ModelAdapter
}

func (p *postingCompleter) Complete(ctx context.Context, _ *chat.Chat) (modeladapter.Completion, error) {
	return modeladapter.Completion{}, p.PostJSON(ctx, "/models/m:generateContent", map[string]string{}, nil)
}

func TestRetryingCompleter_UnsupportedSchemeNotRetried(t *testing.T) {
	pc := &postingCompleter{ModelAdapter: modeladapter.New("localhost:8080/v1", modeladapter.Auth{}, nil)}

	var sleeps []time.Duration
	r := newRetrying(pc, modeladapter.RetryOpts{MaxRetries: 3}, &sleeps)

	_, attempts, err := r.CompleteWithAttempts(context.Background(), chat.New())
	assert.ErrorContains(t, err, "unsupported protocol scheme")
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sleeps)
}

func TestRetryingCompleter_UsageTrackerForwarding(t *testing.T) {
	fc := &fakeCompleter{}
	fc.tracker.Add(usage.TokenCount{InputTokens: 3, OutputTokens: 4})

	r := modeladapter.NewRetryingCompleter(fc, modeladapter.RetryOpts{})
	assert.Equal(t, 7, r.UsageTracker().Total().Total())
}

type plainCompleter struct{}

func (plainCompleter) Complete(context.Context, *chat.Chat) (modeladapter.Completion, error) {
	return modeladapter.Completion{}, errors.New("nope")
}

func TestRetryingCompleter_UsageTrackerFallback(t *testing.T) {
	r := modeladapter.NewRetryingCompleter(plainCompleter{}, modeladapter.RetryOpts{})

	tr := r.UsageTracker()
	require.NotNil(t, tr)
	assert.Same(t, tr, r.UsageTracker())
}
