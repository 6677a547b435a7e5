package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/randalmurphal/proofread/provider"
)

const (
	providerName = "openai"
	endpointPath = "/chat/completions"

	// errorBodyLimit caps how much of an error response is read for diagnostics.
	errorBodyLimit = 4 << 10
)

// codeContextLength is the error code OpenAI returns for oversized prompts.
const codeContextLength = "context_length_exceeded"

// Client calls an OpenAI-compatible chat completions endpoint.
// It is safe for concurrent use.
type Client struct {
	url          string
	apiKey       string
	model        string
	organization string
	userAgent    string
	hc           *http.Client
	do           func(*http.Request) (*http.Response, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The config timeout is not applied
// to a replaced client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
		c.do = hc.Do
	}
}

// NewClient creates a Client from cfg, resolving the API key.
func NewClient(cfg provider.Config, opts ...Option) (*Client, error) {
	key, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, provider.NewError(providerName, "configure", err, false)
	}

	base := cfg.BaseURL
	if base == "" {
		base = provider.DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = provider.DefaultTimeout
	}
	hc := &http.Client{Timeout: timeout}

	c := &Client{
		url:          strings.TrimRight(base, "/") + endpointPath,
		apiKey:       key,
		model:        cfg.Model,
		organization: cfg.GetStringOption("organization", ""),
		userAgent:    cfg.GetStringOption("user_agent", "proofread"),
		hc:           hc,
		do:           hc.Do,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
	Stop             []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete implements provider.Client.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, provider.NewError(providerName, "complete", fmt.Errorf("%w: no model", provider.ErrInvalidRequest), false)
	}

	body, err := json.Marshal(toChatRequest(model, req))
	if err != nil {
		return nil, provider.NewError(providerName, "complete", fmt.Errorf("encode request: %w", err), false)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, provider.NewError(providerName, "complete", fmt.Errorf("%w: %v", provider.ErrInvalidRequest, err), false)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}

	start := time.Now()
	resp, err := c.do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var timeoutErr interface{ Timeout() bool }
		if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
			return nil, provider.NewError(providerName, "complete", fmt.Errorf("%w: %v", provider.ErrTimeout, err), true)
		}
		return nil, provider.NewError(providerName, "complete", fmt.Errorf("%w: %v", provider.ErrUnavailable, err), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, classify(resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, provider.NewHTTPError(providerName, "complete", resp.StatusCode, fmt.Errorf("decode response: %w", err), false)
	}
	if len(out.Choices) == 0 {
		return nil, provider.NewHTTPError(providerName, "complete", resp.StatusCode, errors.New("response has no choices"), false)
	}

	respModel := out.Model
	if respModel == "" {
		respModel = model
	}
	return &provider.Response{
		Content:      out.Choices[0].Message.Content,
		Model:        respModel,
		FinishReason: out.Choices[0].FinishReason,
		Duration:     time.Since(start),
		Usage: provider.TokenUsage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
			TotalTokens:  out.Usage.TotalTokens,
		},
	}, nil
}

// Provider implements provider.Client.
func (c *Client) Provider() string {
	return providerName
}

// Close implements provider.Client.
func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func toChatRequest(model string, req provider.Request) chatRequest {
	msgs := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	return chatRequest{
		Model:            model,
		Messages:         msgs,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stop:             req.Stop,
	}
}

// classify maps a non-2xx response to a provider error.
func classify(resp *http.Response) error {
	slurp, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	msg := strings.TrimSpace(string(slurp))

	var env errorEnvelope
	if json.Unmarshal(slurp, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
	}

	status := resp.StatusCode
	var sentinel error
	retryable := false
	switch {
	case status == http.StatusTooManyRequests:
		sentinel, retryable = provider.ErrRateLimited, true
	case status == http.StatusRequestEntityTooLarge,
		status == http.StatusBadRequest && env.Error.Code == codeContextLength:
		sentinel = provider.ErrRequestTooLarge
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		sentinel = provider.ErrCredentialsInvalid
	case status == http.StatusRequestTimeout, status/100 == 5:
		sentinel, retryable = provider.ErrUnavailable, true
	default:
		sentinel = provider.ErrInvalidRequest
	}

	if msg == "" {
		msg = http.StatusText(status)
	}
	return provider.NewHTTPError(providerName, "complete", status, fmt.Errorf("%w: %s", sentinel, msg), retryable)
}

var _ provider.Client = (*Client)(nil)
