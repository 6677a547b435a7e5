// Package proofread corrects long OCR'd documents with a chat-completion model.
//
// A document rarely fits into a single request, so it is cut into chunks that
// respect the model's combined input and output budget, every chunk is sent
// concurrently wrapped in an instruction template, and the answers are joined
// back in their original order.
//
// The work is split across subpackages:
//
//   - tokens: model profiles, token counting and per-chunk budgets
//   - template: the instruction wrap with its single payload marker
//   - chunk: adaptive splitting of a document into budget-sized chunks
//   - provider: backend-neutral requests, responses and error classification
//   - openai: HTTP chat-completions backend
//   - mock: scripted backend for tests and dry runs
//   - model: model family names, usage and cost tracking
//   - completion: one chunk, one request, with retry
//   - dispatch: fan-out over all chunks and ordered reassembly
//   - config: configuration file, environment and credentials
//   - discover: finding input documents and writing results
//   - runner: per-document processing used by the command line
//
// # Quick Start
//
//	client, err := provider.NewFromConfig(provider.FromEnv())
//	if err != nil { ... }
//	defer client.Close()
//
//	c := completion.New(client, completion.DefaultSettings())
//	engine := dispatch.New(c, dispatch.Options{Concurrency: 8})
//	text, err := engine.Process(ctx, document, instructions, "gpt-3.5-turbo", template.Default())
package proofread
