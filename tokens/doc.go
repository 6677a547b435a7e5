// Package tokens provides token counting, model profiles and chunk budgets.
//
// # Counter
//
// The Counter interface provides token counting methods. Models with a known
// tokenizer are measured exactly with tiktoken; everything else gets a
// conservative character estimate:
//
//	p, err := tokens.LookupProfile("gpt-3.5-turbo")
//	counter, err := tokens.CounterFor(p)
//	count := counter.Count("Hello, world!")
//
// For one-off counting, use the convenience function:
//
//	count, err := tokens.Count("gpt-4", "Hello, world!")
//
// Unknown models fail with proofread.ErrConfiguration.
//
// # Profiles
//
// A Profile holds a model's combined context window and the part of it
// reserved for the answer. Dated variants resolve to their family:
//
//	p, _ := tokens.LookupProfile("gpt-4-0613") // gpt-4 limits
//
// Extra models can be added to a copy of the built-in set:
//
//	set := tokens.Profiles.With(tokens.Profile{Model: "llama3", ContextWindow: 8192, ReservedCompletion: 1024})
//
// # Budget
//
// Budget is what one chunk may spend once the fixed prompt is paid for:
//
//	budget := tokens.NewChunkBudget(p, overhead, counter)
//	if err := budget.Validate(); err != nil { ... } // nothing left for input
//	budget.Fits(chunk)
package tokens
