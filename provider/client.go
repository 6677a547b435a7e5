// Package provider defines the backend-neutral interface for chat completion
// services.
//
// The proofreading pipeline talks to a backend only through Client, so the
// HTTP backend and the scripted test backend are interchangeable. Backends
// register a factory under a name and are created from a Config:
//
//	client, err := provider.New("openai", provider.Config{
//	    Model:  "gpt-3.5-turbo",
//	    APIKey: key,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// # Available Providers
//
//   - "openai": OpenAI-compatible chat completions over HTTP
//   - "mock": scripted responses for tests and dry runs
//
// Backend packages register themselves in init, so callers import them for
// side effects:
//
//	import _ "github.com/randalmurphal/proofread/openai"
//
// # Errors
//
// Backends classify failures with the sentinels in this package. The retry
// logic upstream only distinguishes ErrRateLimited, ErrRequestTooLarge and
// everything else, so a backend must wrap one of the first two whenever the
// service reports those conditions.
package provider

import "context"

// Client is the unified interface for chat completion backends.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a request and returns the full response.
	// The context controls cancellation and timeouts.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Provider returns the provider name (e.g., "openai", "mock").
	Provider() string

	// Close releases any resources held by the client.
	Close() error
}
