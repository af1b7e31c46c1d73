// Package llm provides the completion gateway client used to drive debate
// turns. It speaks the OpenAI-compatible chat completion protocol, layering
// on retry with exponential backoff, prompt-cache hints with a plain-format
// fallback, and cache telemetry extraction.
package llm

import "context"

// Message roles in the chat completion protocol.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single entry in a completion request's history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion request for a backend model.
type Request struct {
	// Model is the backend model ID (e.g. "anthropic/claude-sonnet-4").
	Model string
	// SystemPrompt is the participant's persona and instructions. May be
	// sent in a cache-hinted format for providers that support it.
	SystemPrompt string
	// History is the conversation window, ordered oldest first.
	History []ChatMessage
	// ContextWindow is the model's context length in tokens, if known.
	// Zero means it will be estimated from the model ID.
	ContextWindow int
	// Temperature for sampling. Zero means the client default.
	Temperature float64
}

// Usage captures token accounting for a completed request.
type Usage struct {
	TotalTokens  int `json:"total_tokens"`
	PromptTokens int `json:"prompt_tokens"`
	// CachedTokens is the number of prompt tokens served from the
	// provider's prompt cache.
	CachedTokens int `json:"cached_tokens"`
}

// Result is a successful completion.
type Result struct {
	// Text is the model's reply.
	Text string
	// Usage is the token accounting reported by the gateway.
	Usage Usage
	// Cost is the estimated request cost in USD.
	Cost float64
	// CacheDiscount is the gateway-reported cache discount, if any.
	CacheDiscount float64
	// FallbackUsed reports that the cache-hinted format was rejected and
	// the reply came from the plain-format fallback request.
	FallbackUsed bool
}

// Completer is the interface the debate engine depends on. The production
// implementation is Client; tests substitute scripted fakes.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}

// Model describes a backend model advertised by the gateway.
type Model struct {
	ID            string
	Name          string
	ContextWindow int
	// InputCost and OutputCost are USD per million tokens.
	InputCost   float64
	OutputCost  float64
	Description string
}
