package model

import (
	"sort"
	"sync"
)

// Usage tracks token usage for a model.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Requests     int `json:"requests"`
}

// Add adds the given usage to this usage.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Requests += other.Requests
}

// TotalTokens returns the total tokens used.
func (u *Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// ModelPricing holds per-million-token pricing for a model.
type ModelPricing struct {
	InputPerMillion  float64 `json:"input_per_million" yaml:"input_per_million" toml:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million" yaml:"output_per_million" toml:"output_per_million"`
}

// Cost returns the price of usage at these rates.
func (p ModelPricing) Cost(usage Usage) float64 {
	return float64(usage.InputTokens)/1_000_000*p.InputPerMillion +
		float64(usage.OutputTokens)/1_000_000*p.OutputPerMillion
}

// ModelPrices contains list pricing for OpenAI chat models in USD.
var ModelPrices = map[ModelName]ModelPricing{
	ModelGPT35:     {InputPerMillion: 0.5, OutputPerMillion: 1.5},
	ModelGPT35_16K: {InputPerMillion: 3.0, OutputPerMillion: 4.0},
	ModelGPT4:      {InputPerMillion: 30.0, OutputPerMillion: 60.0},
	ModelGPT4_32K:  {InputPerMillion: 60.0, OutputPerMillion: 120.0},
	ModelGPT4Turbo: {InputPerMillion: 10.0, OutputPerMillion: 30.0},
	ModelGPT4o:     {InputPerMillion: 2.5, OutputPerMillion: 10.0},
	ModelGPT4oMini: {InputPerMillion: 0.15, OutputPerMillion: 0.6},
}

// CostTracker tracks token usage and estimated costs across models.
type CostTracker struct {
	mu     sync.RWMutex
	totals map[ModelName]Usage
	prices map[ModelName]ModelPricing
}

// NewCostTracker creates a new cost tracker priced with ModelPrices.
func NewCostTracker() *CostTracker {
	return NewCostTrackerWithPrices(nil)
}

// NewCostTrackerWithPrices creates a tracker whose prices override
// ModelPrices for the given families.
func NewCostTrackerWithPrices(overrides map[ModelName]ModelPricing) *CostTracker {
	prices := make(map[ModelName]ModelPricing, len(ModelPrices)+len(overrides))
	for k, v := range ModelPrices {
		prices[k] = v
	}
	for k, v := range overrides {
		prices[NormalizeModelName(string(k))] = v
	}
	return &CostTracker{
		totals: make(map[ModelName]Usage),
		prices: prices,
	}
}

// Record adds a usage record for the given model.
func (t *CostTracker) Record(model ModelName, input, output int) {
	t.RecordUsage(model, Usage{InputTokens: input, OutputTokens: output, Requests: 1})
}

// RecordUsage adds a usage record for the given model.
func (t *CostTracker) RecordUsage(model ModelName, usage Usage) {
	model = NormalizeModelName(string(model))

	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.totals[model]
	u.Add(usage)
	t.totals[model] = u
}

// Usage returns the usage for a specific model.
func (t *CostTracker) Usage(model ModelName) Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totals[NormalizeModelName(string(model))]
}

// Models returns the models with recorded usage, sorted by name.
func (t *CostTracker) Models() []ModelName {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]ModelName, 0, len(t.totals))
	for k := range t.totals {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Summary returns a copy of all usage totals.
func (t *CostTracker) Summary() map[ModelName]Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[ModelName]Usage, len(t.totals))
	for k, v := range t.totals {
		result[k] = v
	}
	return result
}

// TotalUsage returns aggregated usage across all models.
func (t *CostTracker) TotalUsage() Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total Usage
	for _, u := range t.totals {
		total.Add(u)
	}
	return total
}

// EstimatedCost calculates the estimated cost based on current pricing.
// Models without a price contribute nothing.
func (t *CostTracker) EstimatedCost() float64 {
	var total float64
	for _, c := range t.EstimatedCostByModel() {
		total += c
	}
	return total
}

// EstimatedCostByModel returns the estimated cost for each priced model.
func (t *CostTracker) EstimatedCostByModel() map[ModelName]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[ModelName]float64, len(t.totals))
	for model, usage := range t.totals {
		prices, ok := t.prices[model]
		if !ok {
			continue
		}
		result[model] = prices.Cost(usage)
	}
	return result
}

// Reset clears all tracked usage.
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals = make(map[ModelName]Usage)
}
