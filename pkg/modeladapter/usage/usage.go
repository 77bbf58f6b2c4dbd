// Package usage accumulates token counts reported by model backends.
package usage

import "sync"

// TokenCount holds input and output token counts for one or more completions.
type TokenCount struct {
	InputTokens  int
	OutputTokens int
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// Tracker keeps a running total of token usage and the number of
// completions it covers. The zero value is ready to use and it is safe for
// concurrent use.
type Tracker struct {
	mu    sync.Mutex
	total TokenCount
	calls int
}

// Add records the usage of one completion.
func (t *Tracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total.InputTokens += tc.InputTokens
	t.total.OutputTokens += tc.OutputTokens
	t.calls++
}

// Total returns the accumulated token count.
func (t *Tracker) Total() TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.total
}

// Calls returns the number of completions recorded.
func (t *Tracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.calls
}
