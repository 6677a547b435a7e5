package model

import "strings"

// ModelName represents a normalized model family name.
type ModelName string

// OpenAI chat model families.
const (
	ModelGPT35     ModelName = "gpt-3.5-turbo"
	ModelGPT35_16K ModelName = "gpt-3.5-turbo-16k"
	ModelGPT4      ModelName = "gpt-4"
	ModelGPT4_32K  ModelName = "gpt-4-32k"
	ModelGPT4Turbo ModelName = "gpt-4-turbo"
	ModelGPT4o     ModelName = "gpt-4o"
	ModelGPT4oMini ModelName = "gpt-4o-mini"
)

// families is ordered most specific first: every entry that is a prefix of
// another must come after it.
var families = []ModelName{
	ModelGPT4oMini,
	ModelGPT4o,
	ModelGPT4Turbo,
	ModelGPT4_32K,
	ModelGPT4,
	ModelGPT35_16K,
	ModelGPT35,
}

// NormalizeModelName converts a full model identifier to its family.
// For example, "gpt-3.5-turbo-0613" becomes "gpt-3.5-turbo" and
// "gpt-4o-mini-2024-07-18" becomes "gpt-4o-mini". "gpt-4-1106-preview" is a
// turbo model and maps to "gpt-4-turbo".
// Names that match no known family are returned lowercased and trimmed.
func NormalizeModelName(name string) ModelName {
	lower := strings.ToLower(strings.TrimSpace(name))
	if i := strings.LastIndex(lower, "/"); i >= 0 {
		// "openai/gpt-4o" style routing prefixes
		lower = lower[i+1:]
	}

	if strings.HasSuffix(lower, "-preview") && strings.HasPrefix(lower, "gpt-4-") {
		return ModelGPT4Turbo
	}
	for _, f := range families {
		s := string(f)
		if lower == s || strings.HasPrefix(lower, s+"-") {
			return f
		}
	}
	return ModelName(lower)
}

// Known reports whether name normalises to a priced family.
func Known(name string) bool {
	_, ok := ModelPrices[NormalizeModelName(name)]
	return ok
}
