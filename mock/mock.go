// Package mock provides a scripted provider.Client for tests and dry runs.
//
// Without configuration the client echoes the last user message, so a dry run
// with a marker-only wrap returns every document unchanged. Responses, errors
// and a custom handler can be scripted per call:
//
//	m := mock.New().
//	    WithErrors(provider.ErrRateLimited, provider.ErrRateLimited).
//	    WithResponses("fixed text")
//
// Registered as "mock"; the "response" option sets a fixed reply.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/randalmurphal/proofread/provider"
)

const providerName = "mock"

// Client is a test double for provider.Client.
// It supports fixed responses, sequential responses, scripted errors and
// custom handlers, and records every request.
type Client struct {
	mu           sync.Mutex
	responses    []string
	responseIdx  int
	errs         []error
	errIdx       int
	err          error
	latency      func(req provider.Request) time.Duration
	completeFunc func(ctx context.Context, req provider.Request) (*provider.Response, error)
	calls        []provider.Request
}

// New creates a mock that echoes the last user message.
func New() *Client {
	return &Client{}
}

// WithResponses configures sequential responses.
// Each call to Complete returns the next response in the list.
// Cycles back to the beginning after exhausting all responses.
func (m *Client) WithResponses(responses ...string) *Client {
	m.responses = responses
	return m
}

// WithErrors makes the first len(errs) calls fail with errs in order.
// Later calls behave as if no errors were scripted.
func (m *Client) WithErrors(errs ...error) *Client {
	m.errs = errs
	return m
}

// WithError configures the mock to always return an error.
func (m *Client) WithError(err error) *Client {
	m.err = err
	return m
}

// WithLatency delays every call by fn(req), honouring cancellation.
func (m *Client) WithLatency(fn func(req provider.Request) time.Duration) *Client {
	m.latency = fn
	return m
}

// WithCompleteFunc sets a custom handler for Complete calls.
// This takes precedence over responses and errors.
// The handler runs without the mock's lock held, so it may block.
func (m *Client) WithCompleteFunc(fn func(ctx context.Context, req provider.Request) (*provider.Response, error)) *Client {
	m.completeFunc = fn
	return m
}

// Complete implements provider.Client.
func (m *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn := m.completeFunc
	latency := m.latency
	m.mu.Unlock()

	if latency != nil {
		if d := latency(req); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	// Check for context cancellation
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if fn != nil {
		return fn(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.errIdx < len(m.errs) {
		err := m.errs[m.errIdx]
		m.errIdx++
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}

	content := LastUserMessage(req)
	if len(m.responses) > 0 {
		content = m.responses[m.responseIdx%len(m.responses)]
		m.responseIdx++
	}

	return &provider.Response{
		Content:      content,
		Model:        req.Model,
		FinishReason: "stop",
	}, nil
}

// Provider implements provider.Client.
func (m *Client) Provider() string {
	return providerName
}

// Close implements provider.Client.
func (m *Client) Close() error {
	return nil
}

// Calls returns a copy of the recorded requests.
func (m *Client) Calls() []provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Complete calls so far.
func (m *Client) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls and rewinds scripted responses and errors.
func (m *Client) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.responseIdx = 0
	m.errIdx = 0
}

// LastUserMessage returns the content of the last user message in req.
func LastUserMessage(req provider.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == provider.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

var _ provider.Client = (*Client)(nil)
