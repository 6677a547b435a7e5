package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/proofread/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := provider.Config{
		Provider: "openai",
		Model:    "gpt-3.5-turbo",
		BaseURL:  srv.URL + "/v1/",
		APIKey:   "sk-test",
		Options:  map[string]any{"organization": "org-1"},
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func proofreadRequest() provider.Request {
	return provider.Request{
		Messages: []provider.Message{
			provider.NewTextMessage(provider.RoleSystem, "Fix OCR errors."),
			provider.NewTextMessage(provider.RoleUser, "```Tbe cat```"),
		},
		MaxTokens:        1000,
		Temperature:      0.6,
		TopP:             1,
		FrequencyPenalty: 0.25,
		Stop:             []string{"<<END>>"},
	}
}

func TestComplete_Success(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-3.5-turbo-0613",
			"choices": [{"message": {"role": "assistant", "content": "The cat"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 21, "completion_tokens": 2, "total_tokens": 23}
		}`))
	})

	resp, err := c.Complete(context.Background(), proofreadRequest())
	require.NoError(t, err)

	assert.Equal(t, "The cat", resp.Content)
	assert.Equal(t, "gpt-3.5-turbo-0613", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, provider.TokenUsage{InputTokens: 21, OutputTokens: 2, TotalTokens: 23}, resp.Usage)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "```Tbe cat```", got.Messages[1].Content)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.6, got.Temperature, 1e-9)
	assert.InDelta(t, 0.25, got.FrequencyPenalty, 1e-9)
	assert.Equal(t, []string{"<<END>>"}, got.Stop)
}

func TestComplete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		sentinel  error
		retryable bool
	}{
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			body:      `{"error": {"message": "Rate limit reached", "type": "requests"}}`,
			sentinel:  provider.ErrRateLimited,
			retryable: true,
		},
		{
			name:     "context length exceeded",
			status:   http.StatusBadRequest,
			body:     `{"error": {"message": "maximum context length is 4097 tokens", "code": "context_length_exceeded"}}`,
			sentinel: provider.ErrRequestTooLarge,
		},
		{
			name:     "payload too large",
			status:   http.StatusRequestEntityTooLarge,
			sentinel: provider.ErrRequestTooLarge,
		},
		{
			name:     "other bad request",
			status:   http.StatusBadRequest,
			body:     `{"error": {"message": "unknown parameter", "code": "invalid_request_error"}}`,
			sentinel: provider.ErrInvalidRequest,
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			sentinel: provider.ErrCredentialsInvalid,
		},
		{
			name:      "server error",
			status:    http.StatusBadGateway,
			body:      "upstream down",
			sentinel:  provider.ErrUnavailable,
			retryable: true,
		},
		{
			name:      "request timeout",
			status:    http.StatusRequestTimeout,
			sentinel:  provider.ErrUnavailable,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Complete(context.Background(), proofreadRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.retryable, provider.IsRetryable(err))

			var provErr *provider.Error
			require.True(t, errors.As(err, &provErr))
			assert.Equal(t, tt.status, provErr.StatusCode)
			assert.Equal(t, "openai", provErr.Provider)
		})
	}
}

func TestComplete_NoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	})

	_, err := c.Complete(context.Background(), proofreadRequest())
	require.Error(t, err)
	assert.False(t, provider.IsRateLimited(err))
	assert.False(t, provider.IsRequestTooLarge(err))
}

func TestComplete_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, proofreadRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestComplete_RequestModelOverridesDefault(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "gpt-4o", got.Model)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	})

	req := proofreadRequest()
	req.Model = "gpt-4o"
	resp, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.False(t, resp.Usage.Reported())
}

func TestNewClient_MissingKey(t *testing.T) {
	cfg := provider.Config{
		Provider:   "openai",
		APIKeyEnv:  "PROOFREAD_TEST_UNSET_KEY",
		APIKeyFile: t.TempDir() + "/none.key",
	}
	_, err := NewClient(cfg)
	assert.ErrorIs(t, err, provider.ErrCredentialsNotFound)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, provider.Available(), "openai")

	client, err := provider.New("openai", provider.Config{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Provider())
	assert.NoError(t, client.Close())
}
