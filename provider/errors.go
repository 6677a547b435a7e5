package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrUnknownProvider indicates the requested provider is not registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnavailable indicates the LLM service is unavailable.
	ErrUnavailable = errors.New("LLM service unavailable")

	// ErrRequestTooLarge indicates the request exceeded the model's context
	// window. Seeing it means the chunk budget was computed wrong.
	ErrRequestTooLarge = errors.New("request exceeds model context")

	// ErrRateLimited indicates the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidRequest indicates the request is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTimeout indicates the request timed out.
	ErrTimeout = errors.New("request timed out")

	// ErrCredentialsNotFound indicates credentials are missing.
	ErrCredentialsNotFound = errors.New("credentials not found")

	// ErrCredentialsInvalid indicates the service rejected the credentials.
	ErrCredentialsInvalid = errors.New("credentials invalid")
)

// Error wraps provider errors with context.
type Error struct {
	Provider   string // Provider name ("openai", "mock")
	Op         string // Operation that failed ("complete")
	StatusCode int    // HTTP status when the backend is HTTP based, else 0
	Err        error  // Underlying error
	Retryable  bool   // Whether the error is likely transient
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Err)
	if e.Provider != "" {
		msg = e.Provider + " " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new provider error.
func NewError(provider, op string, err error, retryable bool) *Error {
	return &Error{
		Provider:  provider,
		Op:        op,
		Err:       err,
		Retryable: retryable,
	}
}

// NewHTTPError creates a provider error carrying the HTTP status code.
func NewHTTPError(provider, op string, status int, err error, retryable bool) *Error {
	e := NewError(provider, op, err, retryable)
	e.StatusCode = status
	return e
}

// IsRetryable checks if an error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}

	// Check for known retryable sentinel errors
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRateLimited reports whether the backend asked the caller to slow down.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRequestTooLarge reports whether the backend rejected the request size.
func IsRequestTooLarge(err error) bool {
	return errors.Is(err, ErrRequestTooLarge)
}

// IsAuthError checks if an error is authentication-related.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrCredentialsNotFound) ||
		errors.Is(err, ErrCredentialsInvalid)
}
