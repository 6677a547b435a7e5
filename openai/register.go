package openai

import "github.com/randalmurphal/proofread/provider"

func init() {
	provider.Register(providerName, newFromProviderConfig)
}

// newFromProviderConfig is the factory registered with the provider registry.
func newFromProviderConfig(cfg provider.Config) (provider.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewClient(cfg)
}
