// Package completion sends one chunk to a chat completion backend and retries
// transient failures.
//
// Every backend error is classified into an outcome:
//
//	rate limited        -> wait Retry.Backoff, then attempt again
//	request too large   -> attempt again immediately (logged: the budget is wrong)
//	anything else       -> return the error
//
// Both retry paths draw from one attempt counter. After Retry.MaxRetries
// failed attempts Complete returns an *ExhaustedError, which matches
// proofread.ErrExhaustedRetries and the last backend error under errors.Is.
package completion
