package tokens

import (
	"fmt"

	"github.com/randalmurphal/proofread"
)

// Chat framing costs that are not visible in the message text.
const (
	// TokensPerMessage is added for every message (role and separators).
	TokensPerMessage = 4

	// TokensReplyPriming is added once per request for the assistant preamble.
	TokensReplyPriming = 3
)

// MessageOverhead returns the framing tokens of a request with n messages.
func MessageOverhead(n int) int {
	if n <= 0 {
		return 0
	}
	return n*TokensPerMessage + TokensReplyPriming
}

// Budget is the token allocation of a single chunk request.
type Budget struct {
	// Total is the model's combined input+output ceiling.
	Total int

	// Reserved is the budget kept for the response.
	Reserved int

	// Overhead is the fixed prompt cost paid by every chunk: template text,
	// instructions and message framing.
	Overhead int

	// Limit is what remains for the chunk itself.
	Limit int

	counter Counter
}

// NewChunkBudget derives the per-chunk budget for profile p once overhead
// tokens are paid. The counter is used by Fits.
func NewChunkBudget(p Profile, overhead int, counter Counter) *Budget {
	if counter == nil {
		counter = NewEstimatingCounter()
	}
	return &Budget{
		Total:    p.ContextWindow,
		Reserved: p.ReservedCompletion,
		Overhead: overhead,
		Limit:    p.ContextWindow - p.ReservedCompletion - overhead,
		counter:  counter,
	}
}

// Validate fails with proofread.ErrConfiguration when nothing is left for
// the chunk.
func (b *Budget) Validate() error {
	if b.Limit <= 0 {
		return fmt.Errorf("%w: no input budget left: total %d - reserved %d - overhead %d = %d",
			proofread.ErrConfiguration, b.Total, b.Reserved, b.Overhead, b.Limit)
	}
	return nil
}

// Counter returns the counter the budget measures with.
func (b *Budget) Counter() Counter {
	return b.counter
}

// Fits returns true if text fits within the chunk limit.
func (b *Budget) Fits(text string) bool {
	return b.counter.FitsInLimit(text, b.Limit)
}

// FitsTokens returns true if the token count fits within the chunk limit.
func (b *Budget) FitsTokens(tokens int) bool {
	return tokens <= b.Limit
}

// Remaining returns the chunk budget left after usedTokens, never negative.
func (b *Budget) Remaining(usedTokens int) int {
	remaining := b.Limit - usedTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}
