// Package modeladapter defines the interface and shared plumbing for LLM
// completion adapters.
//
// It contains:
//   - [Completer] interface, [Completion] result, and the embeddable [ModelAdapter] base struct with HTTP helpers, auth, and custom headers
//   - [RetryingCompleter] — per-attempt timeout plus exponential-backoff retry of transient failures
//   - [github.com/germanamz/invoker/pkg/modeladapter/usage] — thread-safe token usage tracker
//
// This package contains no provider-specific code — concrete adapters live in
// separate packages that import modeladapter.
package modeladapter
