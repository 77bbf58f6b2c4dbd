// Package credential resolves named secrets for backend clients.
//
// A [Store] replaces process-wide environment mutation: resolved values live
// in the store, which is handed to whatever needs them. Lookup order is the
// store's own cache, then the ambient source (the process environment by
// default), then an interactive [Prompter].
package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ErrNoInteractiveInput is returned by prompters that have no input channel
// to read from.
var ErrNoInteractiveInput = errors.New("no interactive input available")

// MissingError reports a credential that is not set and could not be
// obtained interactively.
type MissingError struct {
	Name string
	Err  error
}

func (e *MissingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("credential: %s is not set", e.Name)
	}
	return fmt.Sprintf("credential: %s is not set: %v", e.Name, e.Err)
}

func (e *MissingError) Unwrap() error { return e.Err }

// Prompter asks the user for a secret value without echoing it.
type Prompter interface {
	Prompt(ctx context.Context, name string) (string, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, name string) (string, error)

// Prompt calls f(ctx, name).
func (f PrompterFunc) Prompt(ctx context.Context, name string) (string, error) { return f(ctx, name) }

// Store holds resolved credentials for the lifetime of the store.
// It is safe for concurrent use; first-time resolution of a name is
// serialized so a value is prompted for at most once.
type Store struct {
	mu       sync.Mutex
	values   map[string]string
	lookup   func(string) (string, bool)
	prompter Prompter
	log      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLookup replaces the ambient source (default os.LookupEnv).
func WithLookup(fn func(string) (string, bool)) Option {
	return func(s *Store) { s.lookup = fn }
}

// WithPrompter sets the interactive fallback. Without one, missing
// credentials fail immediately.
func WithPrompter(p Prompter) Option {
	return func(s *Store) { s.prompter = p }
}

// WithLogger sets the logger used to report where credentials came from.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates a Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		values: make(map[string]string),
		lookup: os.LookupEnv,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Set stores a value explicitly, overriding any ambient value.
func (s *Store) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[name] = value
}

// Get returns the credential without prompting. Empty values count as unset.
func (s *Store) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.get(name)
}

// get must be called with mu held.
func (s *Store) get(name string) (string, bool) {
	if v, ok := s.values[name]; ok && v != "" {
		return v, true
	}
	if v, ok := s.lookup(name); ok && v != "" {
		return v, true
	}
	return "", false
}

// Ensure makes sure name resolves to a non-empty value, prompting when it is
// neither cached nor ambient. Once resolved, later calls return immediately
// without prompting. It returns *MissingError when no value can be obtained.
func (s *Store) Ensure(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.get(name); ok {
		s.values[name] = v
		return nil
	}

	if s.prompter == nil {
		return &MissingError{Name: name, Err: ErrNoInteractiveInput}
	}

	s.log.DebugContext(ctx, "credential not set, prompting", "name", name)

	v, err := s.prompter.Prompt(ctx, name)
	if err != nil {
		return &MissingError{Name: name, Err: err}
	}
	if v == "" {
		return &MissingError{Name: name, Err: errors.New("empty value entered")}
	}

	s.values[name] = v
	return nil
}
