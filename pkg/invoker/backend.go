package invoker

import (
	"sync"

	"github.com/germanamz/invoker/pkg/modeladapter"
	"github.com/germanamz/invoker/pkg/providers/gemini"
	"github.com/germanamz/invoker/pkg/providers/vertex"
)

const (
	// GoogleAPIKeyEnv is the default credential of the generative-language backend.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"
	// GoogleAccessTokenEnv is the default ambient credential of the managed backend.
	GoogleAccessTokenEnv = "GOOGLE_CLOUD_ACCESS_TOKEN"
)

// Backend is a configured model endpoint. Both built-in backends embed
// modeladapter.ModelAdapter and satisfy it automatically.
type Backend interface {
	modeladapter.Completer
	modeladapter.UsageReporter
}

// Registration describes how to build one backend kind.
type Registration struct {
	// New constructs the backend. It must not perform network calls.
	// secret is the resolved credential, or empty when none is available.
	New func(cfg ClientConfig, secret string) (Backend, error)
	// DefaultBaseURL returns the endpoint used when base_url is empty.
	DefaultBaseURL func(cfg ClientConfig) string
	// DefaultCredential returns the credential name used when credential_env
	// is empty. An empty result means the backend needs no credential.
	DefaultCredential func(cfg ClientConfig) string
	// ExtraKeys lists the extension keys the backend understands.
	ExtraKeys []string
}

var (
	registryMu  sync.RWMutex
	registry    = map[Kind]Registration{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		registry[GenerativeLanguage] = Registration{
			New:               newGenerativeLanguage,
			DefaultBaseURL:    func(ClientConfig) string { return gemini.DefaultBaseURL },
			DefaultCredential: func(ClientConfig) string { return GoogleAPIKeyEnv },
		}
		registry[ManagedModel] = Registration{
			New: newManagedModel,
			DefaultBaseURL: func(cfg ClientConfig) string {
				return vertex.DefaultBaseURL(cfg.Extra["location"])
			},
			DefaultCredential: func(cfg ClientConfig) string {
				if len(cfg.Headers) > 0 {
					return ""
				}
				return GoogleAccessTokenEnv
			},
			ExtraKeys: []string{"project", "location", "publisher"},
		}
	})
}

// RegisterBackend registers a backend under the given kind, replacing any
// existing registration. It can be called before BuildClient to add
// backends beyond the built-in ones.
func RegisterBackend(kind Kind, r Registration) {
	ensureDefaults()

	registryMu.Lock()
	defer registryMu.Unlock()

	registry[kind] = r
}

func lookupBackend(kind Kind) (Registration, bool) {
	ensureDefaults()

	registryMu.RLock()
	defer registryMu.RUnlock()

	r, ok := registry[kind]
	return r, ok
}

func newGenerativeLanguage(cfg ClientConfig, secret string) (Backend, error) {
	a := gemini.New(cfg.BaseURL, secret, cfg.Model)
	a.Temperature = cfg.Temperature
	a.MaxTokens = cfg.MaxTokens
	a.Headers = cfg.Headers

	return a, nil
}

func newManagedModel(cfg ClientConfig, secret string) (Backend, error) {
	opts := vertex.Options{
		Project:   cfg.Extra["project"],
		Location:  cfg.Extra["location"],
		Publisher: cfg.Extra["publisher"],
		Headers:   cfg.Headers,
	}
	if secret != "" {
		opts.TokenSource = vertex.StaticToken(secret)
	}

	a := vertex.New(cfg.BaseURL, cfg.Model, opts)
	a.Temperature = cfg.Temperature
	a.MaxTokens = cfg.MaxTokens

	return a, nil
}
