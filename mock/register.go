package mock

import "github.com/randalmurphal/proofread/provider"

func init() {
	provider.Register(providerName, newFromProviderConfig)
}

// newFromProviderConfig is the factory registered with the provider registry.
func newFromProviderConfig(cfg provider.Config) (provider.Client, error) {
	m := New()
	if r := cfg.GetStringOption("response", ""); r != "" {
		m.WithResponses(r)
	}
	return m, nil
}
