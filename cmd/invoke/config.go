package main

import (
	"errors"
	"flag"
	"maps"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/germanamz/invoker/pkg/invoker"
)

// defaultBaseURL pins the stable API version for the default backend.
const defaultBaseURL = "https://generativelanguage.googleapis.com/v1"

// options holds the client flags. Values from -config are overridden only by
// flags that were set explicitly.
type options struct {
	configPath  string
	backend     string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	maxRetries  int
	project     string
	location    string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "path to YAML client configuration")
	fs.StringVar(&o.backend, "backend", string(invoker.GenerativeLanguage), "backend kind: generative-language or managed-model")
	fs.StringVar(&o.model, "model", "gemini-1.5-pro", "model identifier")
	fs.StringVar(&o.baseURL, "base-url", defaultBaseURL, "API base URL including version segment (default for managed-model: its managed endpoint)")
	fs.Float64Var(&o.temperature, "temperature", 0, "sampling temperature in [0, 2]")
	fs.IntVar(&o.maxTokens, "max-tokens", 0, "maximum output tokens (0 = provider default)")
	fs.DurationVar(&o.timeout, "timeout", 0, "per-attempt timeout (0 = none)")
	fs.IntVar(&o.maxRetries, "max-retries", 2, "retries on transient failure")
	fs.StringVar(&o.project, "project", "", "managed-model: cloud project (required for the managed endpoint)")
	fs.StringVar(&o.location, "location", "", "managed-model: region, e.g. us-central1 (default global)")
}

// resolve builds the client configuration from -config (if any) and the
// flags the user set.
func (o *options) resolve(fs *flag.FlagSet) (invoker.ClientConfig, error) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var cfg invoker.ClientConfig
	if o.configPath != "" {
		loaded, err := invoker.LoadConfig(o.configPath)
		if err != nil {
			return invoker.ClientConfig{}, err
		}
		cfg = loaded
	} else {
		cfg = invoker.ClientConfig{
			Backend:     invoker.Kind(o.backend),
			Model:       o.model,
			Temperature: o.temperature,
			MaxTokens:   o.maxTokens,
			Timeout:     o.timeout,
			MaxRetries:  o.maxRetries,
		}
		if cfg.Backend == invoker.GenerativeLanguage {
			cfg.BaseURL = o.baseURL
		}
	}

	if set["backend"] {
		cfg.Backend = invoker.Kind(o.backend)
	}
	if set["model"] {
		cfg.Model = o.model
	}
	if set["base-url"] {
		cfg.BaseURL = o.baseURL
	}
	if set["temperature"] {
		cfg.Temperature = o.temperature
	}
	if set["max-tokens"] {
		cfg.MaxTokens = o.maxTokens
	}
	if set["timeout"] {
		cfg.Timeout = o.timeout
	}
	if set["max-retries"] {
		cfg.MaxRetries = o.maxRetries
	}
	if set["project"] {
		cfg.Extra = withExtra(cfg.Extra, "project", o.project)
	}
	if set["location"] {
		cfg.Extra = withExtra(cfg.Extra, "location", o.location)
	}

	return cfg, nil
}

// withExtra returns a copy of extra with key set. The loaded map is not
// mutated.
func withExtra(extra map[string]string, key, value string) map[string]string {
	out := maps.Clone(extra)
	if out == nil {
		out = map[string]string{}
	}
	out[key] = value
	return out
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
