package provider

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults for the OpenAI-compatible backend.
const (
	DefaultProvider   = "openai"
	DefaultModel      = "gpt-3.5-turbo"
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultAPIKeyEnv  = "OPENAI_API_KEY"
	DefaultAPIKeyFile = "openaiapi.key"
	DefaultTimeout    = 2 * time.Minute
)

// Config holds configuration for creating a provider client.
// Common fields apply to all providers; use Options for provider-specific settings.
type Config struct {
	// Provider is the name of the provider to use.
	// Required. Values: "openai", "mock"
	Provider string `json:"provider" yaml:"provider" toml:"provider" jsonschema:"enum=openai,enum=mock"`

	// Model is the default model when a request does not name one.
	Model string `json:"model" yaml:"model" toml:"model"`

	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	// Any OpenAI-compatible server works.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`

	// APIKey is the credential itself. Prefer APIKeyEnv or APIKeyFile.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" toml:"api_key,omitempty"`

	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty" toml:"api_key_env,omitempty"`

	// APIKeyFile is a file whose trimmed content is the key.
	APIKeyFile string `json:"api_key_file,omitempty" yaml:"api_key_file,omitempty" toml:"api_key_file,omitempty"`

	// Timeout bounds a single HTTP request. 0 uses the provider default.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`

	// Options holds provider-specific configuration.
	//
	// OpenAI:
	//   - "organization": string (OpenAI-Organization header)
	//   - "user_agent": string
	//
	// Mock:
	//   - "response": string (fixed reply instead of echoing the payload)
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
}

// DefaultConfig returns a Config for the OpenAI backend with the key looked
// up in OPENAI_API_KEY and then openaiapi.key.
func DefaultConfig() Config {
	return Config{
		Provider:   DefaultProvider,
		Model:      DefaultModel,
		BaseURL:    DefaultBaseURL,
		APIKeyEnv:  DefaultAPIKeyEnv,
		APIKeyFile: DefaultAPIKeyFile,
		Timeout:    DefaultTimeout,
	}
}

// LoadFromEnv populates config fields from environment variables.
// Environment variables use PROOFREAD_ prefix and take precedence over existing values.
//
// Supported variables:
//   - PROOFREAD_PROVIDER: Provider name
//   - PROOFREAD_MODEL: Model name
//   - PROOFREAD_BASE_URL: API root
//   - PROOFREAD_API_KEY_FILE: Key file path
//   - PROOFREAD_TIMEOUT: Timeout duration (e.g., "90s")
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("PROOFREAD_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("PROOFREAD_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("PROOFREAD_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("PROOFREAD_API_KEY_FILE"); v != "" {
		c.APIKeyFile = v
	}
	if v := os.Getenv("PROOFREAD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = d
		}
	}
}

// FromEnv creates a Config from environment variables with defaults.
func FromEnv() Config {
	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	return nil
}

// ResolveAPIKey returns the first key found in APIKey, the environment
// variable named by APIKeyEnv, and the file named by APIKeyFile.
// A missing key file is not an error; an unreadable one is.
func (c Config) ResolveAPIKey() (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	if c.APIKeyEnv != "" {
		if v := strings.TrimSpace(os.Getenv(c.APIKeyEnv)); v != "" {
			return v, nil
		}
	}
	if c.APIKeyFile != "" {
		data, err := os.ReadFile(c.APIKeyFile)
		switch {
		case err == nil:
			if key := strings.TrimSpace(string(data)); key != "" {
				return key, nil
			}
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("read key file %s: %w", c.APIKeyFile, err)
		}
	}
	return "", fmt.Errorf("%w: set %s or create %s", ErrCredentialsNotFound,
		orDefault(c.APIKeyEnv, DefaultAPIKeyEnv), orDefault(c.APIKeyFile, DefaultAPIKeyFile))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// WithProvider returns a copy of the config with the specified provider.
func (c Config) WithProvider(provider string) Config {
	c.Provider = provider
	return c
}

// WithModel returns a copy of the config with the specified model.
func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}

// WithBaseURL returns a copy of the config with the specified API root.
func (c Config) WithBaseURL(url string) Config {
	c.BaseURL = url
	return c
}

// WithAPIKey returns a copy of the config with the specified key.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}

// WithOption returns a copy of the config with the specified option set.
func (c Config) WithOption(key string, value any) Config {
	newOpts := make(map[string]any, len(c.Options)+1)
	for k, v := range c.Options {
		newOpts[k] = v
	}
	newOpts[key] = value
	c.Options = newOpts
	return c
}

// GetStringOption retrieves a string option, returning defaultVal if not set.
func (c Config) GetStringOption(key, defaultVal string) string {
	if v, ok := c.Options[key].(string); ok {
		return v
	}
	return defaultVal
}
