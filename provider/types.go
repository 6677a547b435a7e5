package provider

import "time"

// Request configures a chat completion call.
type Request struct {
	// Messages is the conversation to send, system message first.
	Messages []Message `json:"messages"`

	// Model specifies which model to use. Empty means the client default.
	Model string `json:"model,omitempty"`

	// MaxTokens limits the response length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls response randomness (0.0 = deterministic).
	Temperature float64 `json:"temperature"`

	// TopP is the nucleus sampling mass.
	TopP float64 `json:"top_p"`

	// FrequencyPenalty discourages verbatim repetition.
	FrequencyPenalty float64 `json:"frequency_penalty"`

	// PresencePenalty discourages returning to earlier topics.
	PresencePenalty float64 `json:"presence_penalty"`

	// Stop lists sequences that end generation.
	Stop []string `json:"stop,omitempty"`

	// Options holds provider-specific configuration not covered by standard fields.
	Options map[string]any `json:"options,omitempty"`
}

// Message is a conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTextMessage creates a simple text message.
func NewTextMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Role identifies the message sender.
type Role string

// Standard message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Response is the output of a completion call.
type Response struct {
	// Content is the text response from the model.
	Content string `json:"content"`

	// Usage tracks token consumption for this request.
	// Zero values mean the backend did not report usage.
	Usage TokenUsage `json:"usage"`

	// Model is the actual model used (may differ from requested).
	Model string `json:"model"`

	// FinishReason indicates why the model stopped generating.
	// Common values: "stop", "length"
	FinishReason string `json:"finish_reason"`

	// Duration is the time taken for the completion.
	Duration time.Duration `json:"duration"`

	// Metadata holds provider-specific response data.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add combines token usage from another TokenUsage.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Reported returns true if the backend supplied any counts.
func (u TokenUsage) Reported() bool {
	return u.InputTokens > 0 || u.OutputTokens > 0 || u.TotalTokens > 0
}
