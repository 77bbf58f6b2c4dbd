package invoker

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Kind selects a backend family.
type Kind string

const (
	// GenerativeLanguage is the public Gemini API.
	GenerativeLanguage Kind = "generative-language"
	// ManagedModel is a managed (Vertex AI style) model deployment.
	ManagedModel Kind = "managed-model"
)

// ClientConfig describes one backend client. Strict fields are validated
// with struct tags; Extra holds backend-specific keys that each backend
// checks on its own.
type ClientConfig struct {
	Backend       Kind              `yaml:"backend" validate:"required"`
	Model         string            `yaml:"model" validate:"required"`
	BaseURL       string            `yaml:"base_url" validate:"required,http_url"`
	Temperature   float64           `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens     int               `yaml:"max_tokens" validate:"gte=0"`
	Timeout       time.Duration     `yaml:"timeout" validate:"gte=0"`
	MaxRetries    int               `yaml:"max_retries" validate:"gte=0"`
	BaseDelay     time.Duration     `yaml:"base_delay" validate:"gte=0"`
	CredentialEnv string            `yaml:"credential_env"`
	Headers       map[string]string `yaml:"headers" validate:"omitempty,dive,keys,required,endkeys,required"`
	Extra         map[string]string `yaml:"extra"`
}

// LoadConfig reads a YAML file and returns a ClientConfig.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so header values and other secrets can stay out of the file.
func LoadConfig(path string) (ClientConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return ClientConfig{}, fmt.Errorf("invoker: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg ClientConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("invoker: parse config: %w", err)
	}

	return cfg, nil
}

// WithDefaults returns a copy of c with the backend's default base URL and
// credential name filled in. Unknown backends are returned unchanged.
func (c ClientConfig) WithDefaults() ClientConfig {
	out := c
	out.Headers = maps.Clone(c.Headers)
	out.Extra = maps.Clone(c.Extra)

	reg, ok := lookupBackend(c.Backend)
	if !ok {
		return out
	}

	if out.BaseURL == "" && reg.DefaultBaseURL != nil {
		out.BaseURL = reg.DefaultBaseURL(out)
	}
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")

	if out.CredentialEnv == "" && reg.DefaultCredential != nil {
		out.CredentialEnv = reg.DefaultCredential(out)
	}

	return out
}

var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
})

// Validate checks the strict fields and the backend's extension keys.
// It does not apply defaults; call WithDefaults first.
func (c ClientConfig) Validate() error {
	reg, ok := lookupBackend(c.Backend)
	if !ok && c.Backend != "" {
		return &ClientConfigError{Field: "backend", Err: fmt.Errorf("unknown backend %q", c.Backend)}
	}

	if err := structValidator().Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return &ClientConfigError{
				Field: fe.Field(),
				Err:   fmt.Errorf("failed %q constraint (value %v)", fe.Tag(), redact(fe)),
			}
		}
		return &ClientConfigError{Err: err}
	}

	for _, k := range slices.Sorted(maps.Keys(c.Extra)) {
		if !slices.Contains(reg.ExtraKeys, k) {
			return &ClientConfigError{
				Field: "extra." + k,
				Err:   fmt.Errorf("unknown key for backend %s", c.Backend),
			}
		}
	}

	return nil
}

// redact keeps header values out of error messages.
func redact(fe validator.FieldError) any {
	if strings.HasPrefix(fe.Namespace(), "ClientConfig.headers") {
		return "<redacted>"
	}
	return fe.Value()
}
