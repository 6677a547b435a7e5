package chunk

import (
	"fmt"
	"log/slog"
	"unicode"
	"unicode/utf8"

	"github.com/randalmurphal/proofread"
	"github.com/randalmurphal/proofread/template"
	"github.com/randalmurphal/proofread/tokens"
)

// DefaultMargin is added to every piece's token count to absorb tokens that
// merge differently once the piece is embedded in the wrap.
const DefaultMargin = 4

// Chunk is one contiguous piece of a document.
type Chunk struct {
	// Index is the 0-based position used for reassembly.
	Index int

	// Text is the piece itself.
	Text string

	// Tokens is the piece's token count without margin.
	Tokens int
}

// Plan is the result of a split together with how it was reached.
type Plan struct {
	Chunks []Chunk

	// Width is the final piece width in runes.
	Width int

	// Worst is the largest piece token count, margin included.
	Worst int

	// Limit is the per-chunk budget the plan satisfies.
	Limit int

	// Iterations is the number of cut-and-measure rounds.
	Iterations int
}

// Texts returns the chunk texts in order.
func (p *Plan) Texts() []string {
	out := make([]string, len(p.Chunks))
	for i, c := range p.Chunks {
		out[i] = c.Text
	}
	return out
}

// Options configures a Chunker.
type Options struct {
	// Budget is the per-chunk token budget. Required.
	Budget *tokens.Budget

	// Margin is the safety margin in tokens. Zero means DefaultMargin.
	Margin int

	// Logger receives convergence progress. Nil means slog.Default().
	Logger *slog.Logger
}

// Chunker splits documents against a fixed budget.
// It holds no per-document state and is safe for concurrent use.
type Chunker struct {
	budget *tokens.Budget
	margin int
	logger *slog.Logger
}

// New creates a Chunker. It fails with proofread.ErrConfiguration if the
// budget leaves no room for input.
func New(opts Options) (*Chunker, error) {
	if opts.Budget == nil {
		return nil, fmt.Errorf("%w: chunk budget is required", proofread.ErrConfiguration)
	}
	if err := opts.Budget.Validate(); err != nil {
		return nil, err
	}
	margin := opts.Margin
	if margin <= 0 {
		margin = DefaultMargin
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{budget: opts.Budget, margin: margin, logger: logger}, nil
}

// Overhead returns the tokens every chunk request pays regardless of the
// chunk: the wrap without its marker, the instructions, and the framing of a
// system and a user message.
func Overhead(counter tokens.Counter, wrap *template.Wrap, instructions string) int {
	return counter.Count(wrap.Overhead()) + counter.Count(instructions) + tokens.MessageOverhead(2)
}

// Split returns the document's chunks in order.
func (c *Chunker) Split(document string) ([]Chunk, error) {
	plan, err := c.Plan(document)
	if err != nil {
		return nil, err
	}
	return plan.Chunks, nil
}

// Plan splits the document and reports how the width converged.
func (c *Chunker) Plan(document string) (*Plan, error) {
	if document == "" {
		return nil, proofread.ErrEmptyDocument
	}

	counter := c.budget.Counter()
	limit := c.budget.Limit
	bounds := runeBounds(document)
	runes := len(bounds) - 1

	pieces := ceilDiv(counter.Count(document), limit)
	if pieces < 1 {
		pieces = 1
	}
	width := runes / pieces
	if width < 1 {
		width = 1
	}

	for iter := 1; ; iter++ {
		texts := cut(document, bounds, width)
		counts := make([]int, len(texts))
		worst := 0
		for i, text := range texts {
			counts[i] = counter.Count(text)
			if counts[i] > worst {
				worst = counts[i]
			}
		}
		worst += c.margin

		if worst < limit {
			chunks := make([]Chunk, len(texts))
			for i, text := range texts {
				chunks[i] = Chunk{Index: i, Text: text, Tokens: counts[i]}
			}
			c.logger.Info("chunks planned",
				slog.Int("width", width),
				slog.Int("tokens", worst),
				slog.Int("limit", limit),
				slog.Int("chunks", len(chunks)),
				slog.Int("iterations", iter))
			return &Plan{Chunks: chunks, Width: width, Worst: worst, Limit: limit, Iterations: iter}, nil
		}

		next := width * limit / worst
		if next >= width {
			next = width - 1
		}
		if next < 1 {
			return nil, fmt.Errorf("%w: limit %d leaves no room for a single character (%d tokens with margin %d)",
				proofread.ErrConfiguration, limit, worst, c.margin)
		}
		c.logger.Debug("chunk width shrunk",
			slog.Int("from", width),
			slog.Int("to", next),
			slog.Int("tokens", worst),
			slog.Int("limit", limit))
		width = next
	}
}

// runeBounds returns the byte offset of every rune start plus len(s).
// Invalid bytes count as one rune each, so slicing by bounds never alters s.
func runeBounds(s string) []int {
	bounds := make([]int, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		bounds = append(bounds, i)
	}
	return append(bounds, len(s))
}

// cut slices s into pieces of at most width runes. A piece that is not the
// tail ends after the last whitespace in the second half of its window when
// there is one, so words are not split needlessly.
func cut(s string, bounds []int, width int) []string {
	n := len(bounds) - 1
	pieces := make([]string, 0, n/width+1)

	for start := 0; start < n; {
		end := start + width
		if end >= n {
			pieces = append(pieces, s[bounds[start]:])
			break
		}

		floor := start + width/2
		if floor <= start {
			floor = start + 1
		}
		for i := end - 1; i >= floor; i-- {
			r, _ := utf8.DecodeRuneInString(s[bounds[i]:])
			if unicode.IsSpace(r) {
				end = i + 1
				break
			}
		}

		pieces = append(pieces, s[bounds[start]:bounds[end]])
		start = end
	}
	return pieces
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
