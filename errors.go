package proofread

import "errors"

// Error kinds shared by every package. Callers test for them with errors.Is.
var (
	// ErrConfiguration indicates that the model, template or budget settings
	// make the requested work impossible. It is never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmptyDocument is returned when there is no text to chunk.
	ErrEmptyDocument = errors.New("empty document")

	// ErrExhaustedRetries indicates that a chunk kept failing with a retryable
	// error until the retry ceiling was reached.
	ErrExhaustedRetries = errors.New("retries exhausted")
)
