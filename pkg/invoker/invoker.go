package invoker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/germanamz/invoker/pkg/chats/chat"
	"github.com/germanamz/invoker/pkg/chats/message"
	"github.com/germanamz/invoker/pkg/credential"
	"github.com/germanamz/invoker/pkg/modeladapter"
	"github.com/germanamz/invoker/pkg/modeladapter/usage"
)

// Invoker builds clients whose credentials come from an injected store.
type Invoker struct {
	creds *credential.Store
	log   *slog.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger passed to clients.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) { i.log = l }
}

// New creates an Invoker. A nil store resolves credentials from the process
// environment only, without prompting.
func New(creds *credential.Store, opts ...Option) *Invoker {
	if creds == nil {
		creds = credential.NewStore()
	}

	i := &Invoker{
		creds: creds,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// EnsureCredential makes sure the named credential is available, prompting
// for it when the store allows. Repeated calls do not prompt again.
func (i *Invoker) EnsureCredential(ctx context.Context, name string) error {
	return i.creds.Ensure(ctx, name)
}

// BuildClient validates cfg and constructs a client. No network call is
// made; deployment problems the backend can only detect at request time
// surface from Invoke.
func (i *Invoker) BuildClient(cfg ClientConfig) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg, _ := lookupBackend(cfg.Backend)

	var secret string
	if cfg.CredentialEnv != "" {
		secret, _ = i.creds.Get(cfg.CredentialEnv)
	}

	backend, err := reg.New(cfg, secret)
	if err != nil {
		return nil, &ClientConfigError{Field: "backend", Err: err}
	}

	log := i.log.With("backend", string(cfg.Backend), "model", cfg.Model)

	return &Client{
		cfg:     cfg,
		backend: backend,
		retrier: modeladapter.NewRetryingCompleter(backend, modeladapter.RetryOpts{
			MaxRetries:     cfg.MaxRetries,
			BaseDelay:      cfg.BaseDelay,
			AttemptTimeout: cfg.Timeout,
			Logger:         log,
		}),
		log: log,
	}, nil
}

// Prepare ensures cfg's credential and builds the client.
func (i *Invoker) Prepare(ctx context.Context, cfg ClientConfig) (*Client, error) {
	resolved := cfg.WithDefaults()

	if resolved.CredentialEnv != "" {
		if err := i.EnsureCredential(ctx, resolved.CredentialEnv); err != nil {
			return nil, err
		}
	}

	return i.BuildClient(resolved)
}

// Client is a configured handle bound to one backend and model.
// Invoke is blocking and safe for concurrent use.
type Client struct {
	cfg     ClientConfig
	backend Backend
	retrier *modeladapter.RetryingCompleter
	log     *slog.Logger
}

// Config returns the resolved configuration the client was built with.
func (c *Client) Config() ClientConfig { return c.cfg }

// Backend returns the underlying backend.
func (c *Client) Backend() Backend { return c.backend }

// Usage returns the token usage accumulated by this client.
func (c *Client) Usage() usage.TokenCount { return c.backend.UsageTracker().Total() }

// Calls returns how many successful completions the usage covers.
func (c *Client) Calls() int { return c.backend.UsageTracker().Calls() }

// Invoke sends msgs in order and returns the completion. Transient failures
// are retried up to the configured max_retries; any terminal failure is
// returned as *InvocationError. A message with an unknown role fails before
// any request is sent.
func (c *Client) Invoke(ctx context.Context, msgs ...message.Message) (modeladapter.Completion, error) {
	for i, m := range msgs {
		if !m.Role.Valid() {
			return modeladapter.Completion{}, &InvocationError{
				Backend: c.cfg.Backend,
				Model:   c.cfg.Model,
				Err:     fmt.Errorf("message %d: unknown role %q", i, m.Role),
			}
		}
	}

	start := time.Now()

	out, attempts, err := c.retrier.CompleteWithAttempts(ctx, chat.New(msgs...))
	if err != nil {
		if errors.Is(err, modeladapter.ErrInvalidConfig) {
			err = &ClientConfigError{Field: "extra", Err: err}
		}

		c.log.ErrorContext(ctx, "invocation failed",
			"attempts", attempts,
			"duration", time.Since(start),
			"error", err,
		)

		return modeladapter.Completion{}, &InvocationError{
			Backend:  c.cfg.Backend,
			Model:    c.cfg.Model,
			Attempts: attempts,
			Err:      err,
		}
	}

	c.log.DebugContext(ctx, "invocation finished",
		"attempts", attempts,
		"duration", time.Since(start),
		"stop_reason", out.StopReason,
		"input_tokens", out.Usage.InputTokens,
		"output_tokens", out.Usage.OutputTokens,
	)

	return out, nil
}
