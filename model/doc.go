// Package model provides model family normalisation and cost tracking.
//
// Backends report dated model identifiers ("gpt-3.5-turbo-0613",
// "gpt-4o-2024-08-06"); NormalizeModelName folds them into the family used for
// pricing, so usage recorded under either name lands in the same bucket.
//
// # Cost Tracking
//
//	tracker := model.NewCostTracker()
//	tracker.Record(model.NormalizeModelName(resp.Model), 1000, 500) // input, output tokens
//	cost := tracker.EstimatedCost()
//
// The tracker is safe for concurrent use, so every in-flight chunk request of
// a document can record into the same tracker.
package model
