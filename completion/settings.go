package completion

import (
	"fmt"
	"time"

	"github.com/randalmurphal/proofread"
)

// Defaults for proofreading requests.
const (
	DefaultMaxTokens        = 1000
	DefaultTemperature      = 0.6
	DefaultTopP             = 1.0
	DefaultFrequencyPenalty = 0.25
	DefaultPresencePenalty  = 0.0
	DefaultStop             = "<<END>>"

	DefaultMaxRetries = 5
	DefaultBackoff    = 5 * time.Second
)

// Decoding holds the sampling parameters sent with every request.
type Decoding struct {
	// MaxTokens caps the reply. Keep it at or below the profile's reserved
	// completion budget.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens" jsonschema:"minimum=1"`

	Temperature      float64  `json:"temperature" yaml:"temperature" toml:"temperature" jsonschema:"minimum=0,maximum=2"`
	TopP             float64  `json:"top_p" yaml:"top_p" toml:"top_p" jsonschema:"minimum=0,maximum=1"`
	FrequencyPenalty float64  `json:"frequency_penalty" yaml:"frequency_penalty" toml:"frequency_penalty"`
	PresencePenalty  float64  `json:"presence_penalty" yaml:"presence_penalty" toml:"presence_penalty"`
	Stop             []string `json:"stop,omitempty" yaml:"stop,omitempty" toml:"stop,omitempty"`
}

// Retry bounds how often one chunk is attempted.
type Retry struct {
	// MaxRetries is the total number of attempts per chunk, shared by rate
	// limit and oversize retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries" toml:"max_retries" jsonschema:"minimum=1"`

	// Backoff is the wait after a rate limit response.
	Backoff time.Duration `json:"backoff" yaml:"backoff" toml:"backoff"`
}

// Settings configures a Client.
type Settings struct {
	Decoding Decoding `json:"decoding" yaml:"decoding" toml:"decoding"`
	Retry    Retry    `json:"retry" yaml:"retry" toml:"retry"`

	// ASCIIOnly folds the payload to ASCII before sending. Accents are
	// stripped and other non-ASCII characters dropped.
	ASCIIOnly bool `json:"ascii_only" yaml:"ascii_only" toml:"ascii_only"`
}

// DefaultSettings returns the settings proofreading runs use unless
// configured otherwise.
func DefaultSettings() Settings {
	return Settings{
		Decoding: Decoding{
			MaxTokens:        DefaultMaxTokens,
			Temperature:      DefaultTemperature,
			TopP:             DefaultTopP,
			FrequencyPenalty: DefaultFrequencyPenalty,
			PresencePenalty:  DefaultPresencePenalty,
			Stop:             []string{DefaultStop},
		},
		Retry: Retry{
			MaxRetries: DefaultMaxRetries,
			Backoff:    DefaultBackoff,
		},
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.Decoding.MaxTokens <= 0 {
		return fmt.Errorf("%w: decoding.max_tokens must be > 0, got %d", proofread.ErrConfiguration, s.Decoding.MaxTokens)
	}
	if s.Retry.MaxRetries <= 0 {
		return fmt.Errorf("%w: retry.max_retries must be > 0, got %d", proofread.ErrConfiguration, s.Retry.MaxRetries)
	}
	if s.Retry.Backoff < 0 {
		return fmt.Errorf("%w: retry.backoff must be >= 0, got %v", proofread.ErrConfiguration, s.Retry.Backoff)
	}
	return nil
}
