// Package dispatch proofreads a whole document: it plans the chunks once,
// completes them concurrently, and reassembles the corrected text in order.
//
//	engine := dispatch.New(completer, dispatch.Options{Concurrency: 8})
//	text, err := engine.Process(ctx, document, instructions, "gpt-3.5-turbo", wrap)
//
// Process is all or nothing. The first chunk that fails for good cancels the
// shared context, in-flight siblings stop at their next context check, and
// the error is returned without partial text.
package dispatch
