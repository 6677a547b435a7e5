package completion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/proofread/chunk"
	"github.com/randalmurphal/proofread/model"
	"github.com/randalmurphal/proofread/provider"
	"github.com/randalmurphal/proofread/template"
	"github.com/randalmurphal/proofread/tokens"
)

// Job is one chunk to proofread.
type Job struct {
	Model        string
	Instructions string
	Wrap         *template.Wrap
	Chunk        chunk.Chunk
}

// Result is the corrected text of one chunk. Immutable once returned.
type Result struct {
	Index        int
	Text         string
	InputTokens  int
	OutputTokens int
	Attempts     int

	// Estimated is true when the backend did not report usage and the
	// counts above were computed locally.
	Estimated bool
}

// Client completes chunks against a provider.Client.
// It is safe for concurrent use; retry state lives on each call's stack.
type Client struct {
	backend  provider.Client
	settings Settings
	logger   *slog.Logger
	costs    *model.CostTracker
	counter  tokens.Counter
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for attempt and backoff messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCostTracker records every successful call's usage into t.
func WithCostTracker(t *model.CostTracker) Option {
	return func(c *Client) { c.costs = t }
}

// WithCounter sets the counter used to estimate usage the backend omits.
func WithCounter(counter tokens.Counter) Option {
	return func(c *Client) { c.counter = counter }
}

// WithSleep replaces the backoff wait. fn must return ctx.Err() when the
// context ends first.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a Client. Zero-valued settings fields are not defaulted; start
// from DefaultSettings.
func New(backend provider.Client, settings Settings, opts ...Option) *Client {
	c := &Client{
		backend:  backend,
		settings: settings,
		logger:   slog.Default(),
		counter:  tokens.NewEstimatingCounter(),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns the client's settings.
func (c *Client) Settings() Settings {
	return c.settings
}

// outcome is the classification of one backend call.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeBackoff
	outcomeRetryNow
	outcomeFatal
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeBackoff:
		return "backoff"
	case outcomeRetryNow:
		return "retry"
	default:
		return "fatal"
	}
}

func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case provider.IsRateLimited(err):
		return outcomeBackoff
	case provider.IsRequestTooLarge(err):
		return outcomeRetryNow
	default:
		return outcomeFatal
	}
}

// Complete sends the job's chunk and returns the corrected text.
func (c *Client) Complete(ctx context.Context, job Job) (Result, error) {
	req := c.request(job)
	maxAttempts := c.settings.Retry.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetries
	}
	idx := job.Chunk.Index

	for attempt := 1; ; attempt++ {
		if attempt >= 3 {
			c.logger.Info("retrying chunk", slog.Int("chunk", idx), slog.Int("attempt", attempt))
		}

		resp, err := c.backend.Complete(ctx, req)
		out := classify(err)
		switch out {
		case outcomeSuccess:
			res := c.result(job, req, resp, attempt)
			c.logger.Debug("chunk completed",
				slog.Int("chunk", idx),
				slog.Int("attempts", attempt),
				slog.Int("input_tokens", res.InputTokens),
				slog.Int("output_tokens", res.OutputTokens))
			return res, nil
		case outcomeFatal:
			return Result{}, fmt.Errorf("chunk %d: %w", idx, err)
		case outcomeRetryNow:
			c.logger.Error("chunk rejected as too large; chunk budget is miscomputed",
				slog.Int("chunk", idx),
				slog.Int("tokens", job.Chunk.Tokens),
				slog.Any("error", err))
		}

		if attempt >= maxAttempts {
			return Result{}, &ExhaustedError{Index: idx, Attempts: attempt, Last: err}
		}

		if out == outcomeBackoff {
			c.logger.Warn("rate limited, backing off",
				slog.Int("chunk", idx),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", c.settings.Retry.Backoff))
			if err := c.sleep(ctx, c.settings.Retry.Backoff); err != nil {
				return Result{}, fmt.Errorf("chunk %d: %w", idx, err)
			}
		}
	}
}

func (c *Client) request(job Job) provider.Request {
	payload := job.Wrap.Render(job.Chunk.Text)
	if c.settings.ASCIIOnly {
		payload = FoldASCII(payload)
	}
	d := c.settings.Decoding
	return provider.Request{
		Model: job.Model,
		Messages: []provider.Message{
			provider.NewTextMessage(provider.RoleSystem, job.Instructions),
			provider.NewTextMessage(provider.RoleUser, payload),
		},
		MaxTokens:        d.MaxTokens,
		Temperature:      d.Temperature,
		TopP:             d.TopP,
		FrequencyPenalty: d.FrequencyPenalty,
		PresencePenalty:  d.PresencePenalty,
		Stop:             d.Stop,
	}
}

func (c *Client) result(job Job, req provider.Request, resp *provider.Response, attempts int) Result {
	res := Result{
		Index:        job.Chunk.Index,
		Text:         resp.Content,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Attempts:     attempts,
	}
	if !resp.Usage.Reported() {
		res.Estimated = true
		res.InputTokens = tokens.MessageOverhead(len(req.Messages))
		for _, m := range req.Messages {
			res.InputTokens += c.counter.Count(m.Content)
		}
		res.OutputTokens = c.counter.Count(resp.Content)
	}

	if c.costs != nil {
		name := resp.Model
		if name == "" {
			name = job.Model
		}
		c.costs.Record(model.NormalizeModelName(name), res.InputTokens, res.OutputTokens)
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
