package tokens

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/proofread"
)

// DefaultReservedCompletion is the number of tokens set aside for the
// model's answer when a profile does not say otherwise.
const DefaultReservedCompletion = 1000

// Tiktoken encoding names used by the built-in profiles.
const (
	EncodingCL100K = "cl100k_base"
	EncodingO200K  = "o200k_base"
)

// Profile describes the token limits of one model.
type Profile struct {
	// Model is the model identifier sent to the backend.
	Model string `json:"model" yaml:"model" toml:"model"`

	// ContextWindow is the combined input+output ceiling per request.
	ContextWindow int `json:"context_window" yaml:"context_window" toml:"context_window"`

	// ReservedCompletion is the part of ContextWindow kept free for the answer.
	ReservedCompletion int `json:"reserved_completion" yaml:"reserved_completion" toml:"reserved_completion"`

	// Encoding is the tiktoken encoding name. Empty means character estimate.
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty" toml:"encoding,omitempty"`
}

// Validate checks the profile invariants.
func (p Profile) Validate() error {
	if p.Model == "" {
		return fmt.Errorf("%w: profile model is required", proofread.ErrConfiguration)
	}
	if p.ContextWindow <= 0 {
		return fmt.Errorf("%w: %s: context_window must be > 0, got %d", proofread.ErrConfiguration, p.Model, p.ContextWindow)
	}
	if p.ReservedCompletion <= 0 || p.ReservedCompletion >= p.ContextWindow {
		return fmt.Errorf("%w: %s: reserved_completion must be in (0, %d), got %d",
			proofread.ErrConfiguration, p.Model, p.ContextWindow, p.ReservedCompletion)
	}
	return nil
}

// InputCeiling returns the tokens available to the prompt.
func (p Profile) InputCeiling() int {
	return p.ContextWindow - p.ReservedCompletion
}

// ProfileSet maps model identifiers to profiles.
type ProfileSet map[string]Profile

// Profiles contains the limits of the models known out of the box.
var Profiles = ProfileSet{
	"gpt-3.5-turbo":     {Model: "gpt-3.5-turbo", ContextWindow: 4096, ReservedCompletion: DefaultReservedCompletion, Encoding: EncodingCL100K},
	"gpt-3.5-turbo-16k": {Model: "gpt-3.5-turbo-16k", ContextWindow: 16385, ReservedCompletion: DefaultReservedCompletion, Encoding: EncodingCL100K},
	"gpt-4":             {Model: "gpt-4", ContextWindow: 8192, ReservedCompletion: DefaultReservedCompletion, Encoding: EncodingCL100K},
	"gpt-4-32k":         {Model: "gpt-4-32k", ContextWindow: 32768, ReservedCompletion: DefaultReservedCompletion, Encoding: EncodingCL100K},
	"gpt-4-turbo":       {Model: "gpt-4-turbo", ContextWindow: 128000, ReservedCompletion: 4096, Encoding: EncodingCL100K},
	"gpt-4o":            {Model: "gpt-4o", ContextWindow: 128000, ReservedCompletion: 4096, Encoding: EncodingO200K},
	"gpt-4o-mini":       {Model: "gpt-4o-mini", ContextWindow: 128000, ReservedCompletion: 4096, Encoding: EncodingO200K},
}

// Lookup resolves a model identifier to its profile.
// Dated or suffixed variants ("gpt-4-0613", "gpt-4o-2024-08-06") resolve to
// the longest registered name they extend. The returned profile carries the
// requested identifier in Model.
func (s ProfileSet) Lookup(model string) (Profile, error) {
	if p, ok := s[model]; ok {
		return p, nil
	}

	best := ""
	for name := range s {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return Profile{}, fmt.Errorf("%w: unknown model %q", proofread.ErrConfiguration, model)
	}
	p := s[best]
	p.Model = model
	return p, nil
}

// With returns a copy of the set with the given profiles added or replaced.
func (s ProfileSet) With(profiles ...Profile) ProfileSet {
	out := make(ProfileSet, len(s)+len(profiles))
	for k, v := range s {
		out[k] = v
	}
	for _, p := range profiles {
		out[p.Model] = p
	}
	return out
}

// LookupProfile resolves model against the built-in Profiles.
func LookupProfile(model string) (Profile, error) {
	return Profiles.Lookup(model)
}
