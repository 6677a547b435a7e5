// Package runner proofreads documents one at a time and writes the results.
//
// It is the caller layer around dispatch.Engine: documents shorter than the
// minimum length are reported as skipped without contacting the backend,
// results are written atomically next to their input, and one failed
// document does not stop the run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/randalmurphal/proofread"
	"github.com/randalmurphal/proofread/discover"
	"github.com/randalmurphal/proofread/dispatch"
	"github.com/randalmurphal/proofread/provider"
	"github.com/randalmurphal/proofread/template"
)

// ReasonTooShort is the skip reason for documents under the minimum length.
const ReasonTooShort = "TOO SHORT TEXT"

// Status is the outcome class of one document.
type Status int

// Document statuses.
const (
	StatusProcessed Status = iota
	StatusSkipped
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusProcessed:
		return "processed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Processor proofreads one document. *dispatch.Engine implements it.
type Processor interface {
	ProcessReport(ctx context.Context, document, instructions, model string, wrap *template.Wrap) (*dispatch.Report, error)
}

// Options configures a Runner.
type Options struct {
	Instructions string
	Model        string

	// Wrap surrounds every chunk. Nil means template.Default().
	Wrap *template.Wrap

	// MinLength is the shortest document, in characters, worth sending.
	MinLength int

	// Logger receives per-document progress. Nil means slog.Default().
	Logger *slog.Logger
}

// Runner processes documents sequentially.
type Runner struct {
	engine       Processor
	instructions string
	model        string
	wrap         *template.Wrap
	minLength    int
	logger       *slog.Logger
}

// New creates a Runner.
func New(engine Processor, opts Options) *Runner {
	r := &Runner{
		engine:       engine,
		instructions: opts.Instructions,
		model:        opts.Model,
		wrap:         opts.Wrap,
		minLength:    opts.MinLength,
		logger:       opts.Logger,
	}
	if r.wrap == nil {
		r.wrap = template.Default()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Outcome describes what happened to one document.
type Outcome struct {
	Document discover.Document
	Status   Status

	// Text is the corrected text when Status is StatusProcessed.
	Text string

	// Reason explains a skip.
	Reason string

	// Report holds statistics when Status is StatusProcessed.
	Report *dispatch.Report

	// Err is set when Status is StatusFailed.
	Err error
}

// ProcessText proofreads text without touching the filesystem.
func (r *Runner) ProcessText(ctx context.Context, text string) Outcome {
	if utf8.RuneCountInString(text) < r.minLength {
		return Outcome{Status: StatusSkipped, Reason: ReasonTooShort}
	}

	report, err := r.engine.ProcessReport(ctx, text, r.instructions, r.model, r.wrap)
	switch {
	case errors.Is(err, proofread.ErrEmptyDocument):
		return Outcome{Status: StatusSkipped, Reason: ReasonTooShort}
	case err != nil:
		return Outcome{Status: StatusFailed, Err: err}
	}
	return Outcome{Status: StatusProcessed, Text: report.Text, Report: report}
}

// ProcessFile proofreads doc.Path and writes the result to doc.Output.
func (r *Runner) ProcessFile(ctx context.Context, doc discover.Document) Outcome {
	log := r.logger.With(slog.String("path", doc.Path))

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		out := Outcome{Document: doc, Status: StatusFailed, Err: fmt.Errorf("read input: %w", err)}
		log.Error("document failed", slog.Any("error", out.Err))
		return out
	}

	log.Info("processing document")
	out := r.ProcessText(ctx, string(data))
	out.Document = doc

	switch out.Status {
	case StatusSkipped:
		log.Warn("document skipped", slog.String("reason", out.Reason))
	case StatusFailed:
		log.Error("document failed", slog.Any("error", out.Err))
	case StatusProcessed:
		if err := discover.WriteAtomic(doc.Output, []byte(out.Text)); err != nil {
			out.Status, out.Err = StatusFailed, fmt.Errorf("write output: %w", err)
			log.Error("document failed", slog.Any("error", out.Err))
			break
		}
		log.Info("output written",
			slog.String("output", doc.Output),
			slog.Int("chunks", out.Report.Chunks))
	}
	return out
}

// Summary counts the outcomes of a run.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
}

// Add counts one outcome.
func (s *Summary) Add(o Outcome) {
	switch o.Status {
	case StatusProcessed:
		s.Processed++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Err returns a non-nil error when any document failed.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d documents failed", s.Failed, s.Processed+s.Skipped+s.Failed)
}

// Run processes docs in order. A failed document does not stop the run
// unless the backend rejected the credentials. Run also stops when ctx ends.
func (r *Runner) Run(ctx context.Context, docs []discover.Document) (Summary, error) {
	var sum Summary
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := r.step(ctx, doc, &sum); err != nil {
			return sum, err
		}
	}
	return sum, ctx.Err()
}

func (r *Runner) step(ctx context.Context, doc discover.Document, sum *Summary) error {
	out := r.ProcessFile(ctx, doc)
	sum.Add(out)
	if out.Status == StatusFailed && provider.IsAuthError(out.Err) {
		return out.Err
	}
	return nil
}

// Follow processes documents from ch until it is closed or ctx ends. Like
// Run, it stops when the backend rejects the credentials.
func (r *Runner) Follow(ctx context.Context, ch <-chan discover.Document) (Summary, error) {
	var sum Summary
	for {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		case doc, ok := <-ch:
			if !ok {
				return sum, nil
			}
			if err := r.step(ctx, doc, &sum); err != nil {
				return sum, err
			}
		}
	}
}
