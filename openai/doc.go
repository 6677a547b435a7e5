// Package openai provides a provider.Client for OpenAI-compatible chat
// completion endpoints.
//
// The client speaks plain JSON over HTTP (POST {base_url}/chat/completions)
// and classifies failures for the retry logic upstream:
//
//   - 429 wraps provider.ErrRateLimited
//   - 413, or 400 with code "context_length_exceeded", wraps
//     provider.ErrRequestTooLarge
//   - 408 and 5xx are retryable *provider.Error values wrapping
//     provider.ErrUnavailable
//   - 401 and 403 wrap provider.ErrCredentialsInvalid
//   - any other status wraps provider.ErrInvalidRequest
//
// # Usage
//
//	import _ "github.com/randalmurphal/proofread/openai"
//
//	client, err := provider.New("openai", provider.DefaultConfig())
//
// The API key is resolved through provider.Config.ResolveAPIKey when the
// client is created.
package openai
