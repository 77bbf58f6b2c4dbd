// Package gemini provides a Completer implementation for the Google
// Generative Language (Gemini) API.
package gemini

import (
	"context"
	"fmt"
	"net/url"

	"github.com/germanamz/invoker/pkg/chats/chat"
	"github.com/germanamz/invoker/pkg/modeladapter"
)

// DefaultBaseURL is the public Gemini endpoint. The API version segment is
// part of the base URL so callers can select "v1" or "v1beta".
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter implements modeladapter.Completer for the Gemini API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter configured for the Gemini API.
// The baseURL should include the version segment and no trailing slash,
// e.g. "https://generativelanguage.googleapis.com/v1".
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{
		Key:    apiKey,
		Header: "x-goog-api-key",
	}
	a.Name = model

	// The Gemini API does not return rate limit headers; 429 responses are
	// handled by the RetryingCompleter using Retry-After when present.

	return a
}

// Complete sends a conversation to the Gemini API and returns the completion.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat) (modeladapter.Completion, error) {
	req := EncodeRequest(c, a.Temperature, a.MaxTokens)
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(a.Name))

	var resp Response
	if err := a.PostJSON(ctx, path, req, &resp); err != nil {
		return modeladapter.Completion{}, fmt.Errorf("gemini: %w", err)
	}

	out, err := DecodeResponse(resp)
	if err != nil {
		return modeladapter.Completion{}, fmt.Errorf("gemini: %w", err)
	}

	out.Model = a.Name
	a.Usage.Add(out.Usage)

	return out, nil
}
