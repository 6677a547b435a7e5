package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/proofread/chunk"
	"github.com/randalmurphal/proofread/completion"
	"github.com/randalmurphal/proofread/model"
	"github.com/randalmurphal/proofread/template"
	"github.com/randalmurphal/proofread/tokens"
)

// Completer completes one chunk. *completion.Client implements it.
type Completer interface {
	Complete(ctx context.Context, job completion.Job) (completion.Result, error)
}

// Options configures an Engine.
type Options struct {
	// Concurrency bounds in-flight chunk requests. 0 means one request per
	// chunk, all at once.
	Concurrency int

	// Margin is the chunker safety margin. 0 means chunk.DefaultMargin.
	Margin int

	// MaxTokens is the reply cap sent with every request. A profile whose
	// reserved completion is smaller reserves MaxTokens instead. 0 means the
	// completer's decoding cap when it exposes its settings.
	MaxTokens int

	// Profiles resolves model identifiers. Nil means tokens.Profiles.
	Profiles tokens.ProfileSet

	// CounterFor builds the token counter for a profile. Nil means
	// tokens.CounterFor.
	CounterFor func(tokens.Profile) (tokens.Counter, error)

	// Logger receives planning and progress messages. Nil means slog.Default().
	Logger *slog.Logger
}

// Engine fans a document's chunks out to a Completer.
// It is safe for concurrent use.
type Engine struct {
	completer   Completer
	concurrency int
	margin      int
	maxTokens   int
	profiles    tokens.ProfileSet
	counterFor  func(tokens.Profile) (tokens.Counter, error)
	logger      *slog.Logger
}

// New creates an Engine.
func New(c Completer, opts Options) *Engine {
	e := &Engine{
		completer:   c,
		concurrency: opts.Concurrency,
		margin:      opts.Margin,
		maxTokens:   opts.MaxTokens,
		profiles:    opts.Profiles,
		counterFor:  opts.CounterFor,
		logger:      opts.Logger,
	}
	if e.maxTokens == 0 {
		if s, ok := c.(interface{ Settings() completion.Settings }); ok {
			e.maxTokens = s.Settings().Decoding.MaxTokens
		}
	}
	if e.profiles == nil {
		e.profiles = tokens.Profiles
	}
	if e.counterFor == nil {
		e.counterFor = tokens.CounterFor
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Report is the outcome of a processed document.
type Report struct {
	Text string

	// Chunks is the number of chunks the document was split into.
	Chunks int

	// Width is the converged chunk width in runes.
	Width int

	// Iterations is the number of chunker rounds.
	Iterations int

	// Limit is the per-chunk token budget.
	Limit int

	// Usage sums the tokens of all chunk requests.
	Usage model.Usage

	// Attempts sums the backend calls of all chunks.
	Attempts int

	Duration time.Duration
}

// Process proofreads document and returns the corrected text.
// A nil wrap means template.Default().
func (e *Engine) Process(ctx context.Context, document, instructions, modelName string, wrap *template.Wrap) (string, error) {
	r, err := e.ProcessReport(ctx, document, instructions, modelName, wrap)
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

// Plan splits document the way Process would, without sending anything.
func (e *Engine) Plan(document, instructions, modelName string, wrap *template.Wrap) (*chunk.Plan, error) {
	if wrap == nil {
		wrap = template.Default()
	}
	profile, err := e.profiles.Lookup(modelName)
	if err != nil {
		return nil, err
	}
	if e.maxTokens > profile.ReservedCompletion {
		profile.ReservedCompletion = e.maxTokens
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	counter, err := e.counterFor(profile)
	if err != nil {
		return nil, err
	}

	budget := tokens.NewChunkBudget(profile, chunk.Overhead(counter, wrap, instructions), counter)
	chunker, err := chunk.New(chunk.Options{Budget: budget, Margin: e.margin, Logger: e.logger})
	if err != nil {
		return nil, err
	}
	return chunker.Plan(document)
}

// ProcessReport is Process with statistics.
func (e *Engine) ProcessReport(ctx context.Context, document, instructions, modelName string, wrap *template.Wrap) (*Report, error) {
	if wrap == nil {
		wrap = template.Default()
	}
	start := time.Now()

	plan, err := e.Plan(document, instructions, modelName, wrap)
	if err != nil {
		return nil, err
	}

	results := make([]completion.Result, len(plan.Chunks))
	g, gctx := errgroup.WithContext(ctx)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, c := range plan.Chunks {
		if gctx.Err() != nil {
			break
		}
		job := completion.Job{
			Model:        modelName,
			Instructions: instructions,
			Wrap:         wrap,
			Chunk:        c,
		}
		g.Go(func() error {
			res, err := e.completer.Complete(gctx, job)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// The loop can stop early only when the parent context ended.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		Chunks:     len(plan.Chunks),
		Width:      plan.Width,
		Iterations: plan.Iterations,
		Limit:      plan.Limit,
	}
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Text)
		report.Usage.Add(model.Usage{InputTokens: r.InputTokens, OutputTokens: r.OutputTokens, Requests: 1})
		report.Attempts += r.Attempts
	}
	report.Text = b.String()
	report.Duration = time.Since(start)

	e.logger.Info("document processed",
		slog.Int("chunks", report.Chunks),
		slog.Int("attempts", report.Attempts),
		slog.Int("input_tokens", report.Usage.InputTokens),
		slog.Int("output_tokens", report.Usage.OutputTokens),
		slog.Duration("duration", report.Duration))
	return report, nil
}
