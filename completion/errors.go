package completion

import (
	"fmt"

	"github.com/randalmurphal/proofread"
)

// ExhaustedError reports a chunk that failed on every allowed attempt.
type ExhaustedError struct {
	Index    int   // Chunk index
	Attempts int   // Attempts made
	Last     error // Error of the final attempt
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("chunk %d: %v after %d attempts: %v", e.Index, proofread.ErrExhaustedRetries, e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the backend error to errors.Is/As.
func (e *ExhaustedError) Unwrap() []error {
	return []error{proofread.ErrExhaustedRetries, e.Last}
}
