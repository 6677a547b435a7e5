// Package config loads the proofreading run configuration.
//
// A run is configured by, in increasing precedence: built-in defaults, a YAML
// or TOML file, a .env file, PROOFREAD_* environment variables, and command
// line flags applied by the caller. The API key is resolved last through
// provider.Config.ResolveAPIKey: explicit key, then OPENAI_API_KEY, then the
// openaiapi.key file.
//
//	cfg, err := config.Load("proofread.yaml")
//	_ = config.LoadDotEnv()
//	cfg.LoadFromEnv()
//	if err := cfg.Validate(); err != nil { ... }
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/proofread"
	"github.com/randalmurphal/proofread/completion"
	"github.com/randalmurphal/proofread/model"
	"github.com/randalmurphal/proofread/provider"
	"github.com/randalmurphal/proofread/template"
	"github.com/randalmurphal/proofread/tokens"
)

// Defaults for a run.
const (
	DefaultPromptFile  = "prompt.txt"
	DefaultBase        = "./data/papers/"
	DefaultSuffix      = "_proofread"
	DefaultMinLength   = 10
	DefaultConcurrency = 8
)

// Template configures the wrap around each chunk.
type Template struct {
	// Wrap is the template text; it must contain Marker exactly once.
	Wrap string `json:"wrap" yaml:"wrap" toml:"wrap"`

	// Marker is the placeholder replaced by the chunk.
	Marker string `json:"marker" yaml:"marker" toml:"marker"`
}

// Config is the complete configuration of a proofreading run.
type Config struct {
	// Backend selects and configures the completion service.
	Backend provider.Config `json:"backend" yaml:"backend" toml:"backend"`

	// PromptFile holds the instructions sent as the system message.
	PromptFile string `json:"prompt_file" yaml:"prompt_file" toml:"prompt_file"`

	// Base is the directory searched for *.txt documents.
	Base string `json:"base" yaml:"base" toml:"base"`

	// Suffix is appended to the input stem to name the output file.
	Suffix string `json:"suffix" yaml:"suffix" toml:"suffix"`

	// MinLength is the shortest document, in characters, worth sending.
	MinLength int `json:"min_length" yaml:"min_length" toml:"min_length" jsonschema:"minimum=0"`

	Template Template `json:"template" yaml:"template" toml:"template"`

	Decoding completion.Decoding `json:"decoding" yaml:"decoding" toml:"decoding"`
	Retry    completion.Retry    `json:"retry" yaml:"retry" toml:"retry"`

	// ASCIIOnly folds payloads to ASCII before sending.
	ASCIIOnly bool `json:"ascii_only" yaml:"ascii_only" toml:"ascii_only"`

	// Concurrency bounds in-flight requests per document. 0 is unbounded.
	Concurrency int `json:"concurrency" yaml:"concurrency" toml:"concurrency" jsonschema:"minimum=0"`

	// Margin is the chunker safety margin in tokens. 0 uses the default.
	Margin int `json:"margin,omitempty" yaml:"margin,omitempty" toml:"margin,omitempty" jsonschema:"minimum=0"`

	// Profiles adds or replaces model profiles.
	Profiles []tokens.Profile `json:"profiles,omitempty" yaml:"profiles,omitempty" toml:"profiles,omitempty"`

	// Prices adds or replaces per-model pricing for the cost summary.
	Prices map[string]model.ModelPricing `json:"prices,omitempty" yaml:"prices,omitempty" toml:"prices,omitempty"`

	Log Log `json:"log" yaml:"log" toml:"log"`
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	s := completion.DefaultSettings()
	return Config{
		Backend:    provider.DefaultConfig(),
		PromptFile: DefaultPromptFile,
		Base:       DefaultBase,
		Suffix:     DefaultSuffix,
		MinLength:  DefaultMinLength,
		Template: Template{
			Wrap:   template.DefaultWrap,
			Marker: template.DefaultMarker,
		},
		Decoding:    s.Decoding,
		Retry:       s.Retry,
		ASCIIOnly:   s.ASCIIOnly,
		Concurrency: DefaultConcurrency,
		Log:         Log{Level: "info", Format: FormatText},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .yaml/.yml, .toml or .json.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(path, data); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(c)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case ".toml":
		var md toml.MetaData
		md, err = toml.Decode(string(data), c)
		if err == nil {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				err = fmt.Errorf("unknown keys %v", undecoded)
			}
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	default:
		return fmt.Errorf("%w: unsupported config format %q", proofread.ErrConfiguration, ext)
	}
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", proofread.ErrConfiguration, path, err)
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from the given files, or ".env" when none
// are given, into the process environment. Variables already set win.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv applies PROOFREAD_* environment variables.
//
// Supported variables, besides those of provider.Config.LoadFromEnv:
//   - PROOFREAD_PROMPT_FILE
//   - PROOFREAD_BASE
//   - PROOFREAD_CONCURRENCY
//   - PROOFREAD_MAX_RETRIES
//   - PROOFREAD_ASCII_ONLY
//   - PROOFREAD_LOG_LEVEL
//   - PROOFREAD_LOG_FORMAT
func (c *Config) LoadFromEnv() {
	c.Backend.LoadFromEnv()
	if v := os.Getenv("PROOFREAD_PROMPT_FILE"); v != "" {
		c.PromptFile = v
	}
	if v := os.Getenv("PROOFREAD_BASE"); v != "" {
		c.Base = v
	}
	if v := os.Getenv("PROOFREAD_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
	if v := os.Getenv("PROOFREAD_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv("PROOFREAD_ASCII_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ASCIIOnly = b
		}
	}
	if v := os.Getenv("PROOFREAD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PROOFREAD_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks the configuration. Every failure wraps
// proofread.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if err := c.Completion().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Wrap(); err != nil {
		errs = append(errs, err)
	}
	if c.Suffix == "" {
		errs = append(errs, errors.New("suffix is required"))
	}
	if c.MinLength < 0 {
		errs = append(errs, fmt.Errorf("min_length must be >= 0, got %d", c.MinLength))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency))
	}
	if c.Margin < 0 {
		errs = append(errs, fmt.Errorf("margin must be >= 0, got %d", c.Margin))
	}
	for _, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if p, err := c.ProfileSet().Lookup(c.Backend.Model); err == nil && c.Decoding.MaxTokens >= p.ContextWindow {
		errs = append(errs, fmt.Errorf("decoding.max_tokens %d leaves no room for input in the %d token window of %s",
			c.Decoding.MaxTokens, p.ContextWindow, p.Model))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", proofread.ErrConfiguration, errors.Join(errs...))
}

// Completion returns the completion client settings.
func (c *Config) Completion() completion.Settings {
	return completion.Settings{
		Decoding:  c.Decoding,
		Retry:     c.Retry,
		ASCIIOnly: c.ASCIIOnly,
	}
}

// Wrap parses the configured template.
func (c *Config) Wrap() (*template.Wrap, error) {
	return template.Parse(c.Template.Wrap, c.Template.Marker)
}

// ProfileSet returns the built-in profiles with the configured ones applied.
func (c *Config) ProfileSet() tokens.ProfileSet {
	return tokens.Profiles.With(c.Profiles...)
}

// CostTracker returns a tracker priced with the configured overrides.
func (c *Config) CostTracker() *model.CostTracker {
	overrides := make(map[model.ModelName]model.ModelPricing, len(c.Prices))
	for name, p := range c.Prices {
		overrides[model.ModelName(name)] = p
	}
	return model.NewCostTrackerWithPrices(overrides)
}
