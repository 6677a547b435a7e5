package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a backend from its configuration.
type Factory func(cfg Config) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// backendKey folds a backend name so "OpenAI" from a config file and
// "openai" from a flag select the same factory.
func backendKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register makes a backend available under name. Backends call it from
// init; registering the same name twice panics.
//
//	func init() {
//	    provider.Register("openai", newFromProviderConfig)
//	}
func Register(name string, factory Factory) {
	key := backendKey(name)
	if key == "" || factory == nil {
		panic("provider: Register needs a name and a factory")
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("provider %q already registered", key))
	}
	registry[key] = factory
}

// Unregister removes a backend. Tests use it to drop temporary factories.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, backendKey(name))
}

// New builds the named backend. An unknown name yields ErrUnknownProvider
// listing the registered backends; a linked backend registers itself only
// when its package is imported.
func New(name string, cfg Config) (Client, error) {
	key := backendKey(name)
	registryMu.RLock()
	factory, ok := registry[key]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownProvider, name, strings.Join(Available(), ", "))
	}
	client, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", key, err)
	}
	return client, nil
}

// NewFromConfig validates cfg and builds the backend it names.
//
//	client, err := provider.NewFromConfig(provider.FromEnv())
func NewFromConfig(cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(cfg.Provider, cfg)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
