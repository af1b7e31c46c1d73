package llm

import (
	"strings"

	"github.com/gobwas/glob"
)

// Token budget bounds for a single completion. The budget is a quarter of
// the model's context window, clamped to keep small models from overflowing
// and large models from running up cost.
const (
	minCompletionTokens = 500
	maxCompletionTokens = 4000
)

// Profile answers capability questions about backend models: whether a
// model's provider supports prompt-cache hints, and how large its context
// window is likely to be.
type Profile struct {
	cachePatterns []glob.Glob
}

// NewProfile compiles the given cache-provider glob patterns. Patterns that
// fail to compile are skipped; config validation rejects them earlier.
func NewProfile(cacheProviders []string) *Profile {
	p := &Profile{}
	for _, pattern := range cacheProviders {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			continue
		}
		p.cachePatterns = append(p.cachePatterns, g)
	}
	return p
}

// SupportsCacheHints reports whether the model's provider accepts
// cache_control content parts in the request payload.
func (p *Profile) SupportsCacheHints(modelID string) bool {
	id := strings.ToLower(modelID)
	for _, g := range p.cachePatterns {
		if g.Match(id) {
			return true
		}
	}
	return false
}

// MaxTokens returns the completion token budget for a model.
// contextWindow may be zero, in which case it is estimated from the model ID.
func (p *Profile) MaxTokens(modelID string, contextWindow int) int {
	if contextWindow <= 0 {
		contextWindow = EstimateContextWindow(modelID)
	}

	budget := contextWindow / 4
	if budget < minCompletionTokens {
		return minCompletionTokens
	}
	if budget > maxCompletionTokens {
		return maxCompletionTokens
	}
	return budget
}

// EstimateContextWindow guesses a model's context length from its ID when
// the gateway has not reported one. Buckets err on the small side so the
// completion budget stays safe for unknown models.
func EstimateContextWindow(modelID string) int {
	id := strings.ToLower(modelID)

	large := []string{"gpt-4-turbo", "gpt-4o", "claude-3-5", "claude-sonnet-4", "claude-opus-4", "gemini-2", "gemini-1.5-pro", "gemini-1.5-flash"}
	for _, marker := range large {
		if strings.Contains(id, marker) {
			return 200000
		}
	}

	medium := []string{"gpt-4", "claude-3", "gemini-1.5", "gemini-pro"}
	for _, marker := range medium {
		if strings.Contains(id, marker) {
			return 100000
		}
	}

	small := []string{"gpt-3.5", "claude-2", "gemini", "grok"}
	for _, marker := range small {
		if strings.Contains(id, marker) {
			return 32000
		}
	}

	compact := []string{"phi-3", "llama-3.2-3b", "llama-3.1-8b", "qwen-2.5-7b"}
	for _, marker := range compact {
		if strings.Contains(id, marker) {
			return 8000
		}
	}

	tiny := []string{"1b", "3b", "7b"}
	for _, marker := range tiny {
		if strings.Contains(id, marker) {
			return 4000
		}
	}

	return 16000
}
