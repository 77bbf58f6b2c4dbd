// Package vertex provides a Completer implementation for managed model
// deployments that speak the generateContent protocol (Vertex AI and
// private or proxied deployments of it).
package vertex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/germanamz/invoker/pkg/chats/chat"
	"github.com/germanamz/invoker/pkg/modeladapter"
	"github.com/germanamz/invoker/pkg/providers/gemini"
)

const (
	// DefaultLocation is used when no location is configured.
	DefaultLocation = "global"
	// DefaultPublisher is the model publisher segment of the resource path.
	DefaultPublisher = "google"
)

var _ modeladapter.Completer = (*Adapter)(nil)

// DefaultBaseURL returns the managed endpoint for a location. The global
// location is served from the unprefixed host.
func DefaultBaseURL(location string) string {
	if location == "" || location == DefaultLocation {
		return "https://aiplatform.googleapis.com/v1"
	}
	return "https://" + location + "-aiplatform.googleapis.com/v1"
}

// Options holds deployment settings for the managed backend.
type Options struct {
	Project   string
	Location  string // Defaults to DefaultLocation.
	Publisher string // Defaults to DefaultPublisher.

	// TokenSource supplies ambient bearer credentials. It is ignored when
	// nil; private deployments usually authenticate through Headers instead.
	TokenSource oauth2.TokenSource
	Headers     map[string]string
}

// Adapter implements modeladapter.Completer for managed model endpoints.
type Adapter struct {
	modeladapter.ModelAdapter

	Project   string
	Location  string
	Publisher string

	customEndpoint bool
}

// New creates an Adapter. An empty baseURL selects the managed endpoint for
// the configured location; any other value is treated as a custom endpoint.
// Nothing is validated here: missing deployment settings surface on the
// first Complete call.
func New(baseURL, model string, opts Options) *Adapter {
	if opts.Location == "" {
		opts.Location = DefaultLocation
	}
	if opts.Publisher == "" {
		opts.Publisher = DefaultPublisher
	}

	defaultURL := DefaultBaseURL(opts.Location)
	if baseURL == "" {
		baseURL = defaultURL
	}

	a := &Adapter{
		Project:        opts.Project,
		Location:       opts.Location,
		Publisher:      opts.Publisher,
		customEndpoint: baseURL != defaultURL,
	}
	a.BaseURL = baseURL
	a.Name = model
	a.Headers = opts.Headers

	if opts.TokenSource != nil {
		a.Client = &http.Client{
			Timeout:   10 * time.Minute,
			Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, opts.TokenSource)},
		}
	}

	return a
}

// StaticToken wraps a pre-issued access token (e.g. the output of
// `gcloud auth print-access-token`) as a token source.
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

// path returns the generateContent path for the configured deployment.
func (a *Adapter) path() (string, error) {
	model := url.PathEscape(a.Name)

	if a.Project != "" {
		return fmt.Sprintf("/projects/%s/locations/%s/publishers/%s/models/%s:generateContent",
			url.PathEscape(a.Project), url.PathEscape(a.Location), url.PathEscape(a.Publisher), model), nil
	}

	if !a.customEndpoint {
		return "", fmt.Errorf("%w: project is required for the managed endpoint", modeladapter.ErrInvalidConfig)
	}

	return "/models/" + model + ":generateContent", nil
}

// Complete sends a conversation to the managed endpoint and returns the completion.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat) (modeladapter.Completion, error) {
	path, err := a.path()
	if err != nil {
		return modeladapter.Completion{}, fmt.Errorf("vertex: %w", err)
	}

	req := gemini.EncodeRequest(c, a.Temperature, a.MaxTokens)

	var resp gemini.Response
	if err := a.PostJSON(ctx, path, req, &resp); err != nil {
		return modeladapter.Completion{}, fmt.Errorf("vertex: %w", err)
	}

	out, err := gemini.DecodeResponse(resp)
	if err != nil {
		return modeladapter.Completion{}, fmt.Errorf("vertex: %w", err)
	}

	out.Model = a.Name
	a.Usage.Add(out.Usage)

	return out, nil
}
