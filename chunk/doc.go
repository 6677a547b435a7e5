// Package chunk splits a document into pieces that fit a model's token budget.
//
// Token counts are not proportional to character counts, so the chunker
// converges on a piece width instead of computing it: it starts from the width
// a uniform token density would give, measures the densest piece, and shrinks
// the width in proportion to the overshoot until every piece fits.
//
//	counter, _ := tokens.CounterFor(profile)
//	budget := tokens.NewChunkBudget(profile, chunk.Overhead(counter, wrap, instructions), counter)
//	c, err := chunk.New(chunk.Options{Budget: budget})
//	chunks, err := c.Split(document)
//
// # Guarantees
//
//   - strings.Join of the chunk texts equals the document byte for byte.
//     Whitespace at a split point stays at the end of the earlier chunk.
//   - Every chunk's token count plus the safety margin is below the budget limit.
//   - Split terminates: the width strictly decreases and fails with
//     proofread.ErrConfiguration before reaching zero.
package chunk
