package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/tetra-labs/tetra/internal/errors"
)

// probe prompts simulate debate conditions: a persona system prompt plus a
// question expecting a short reply. A bare "test" message lets through
// models that later return empty replies mid-session.
const (
	probeSystemPrompt = "You are a technical expert who gives short, precise answers."
	probeUserMessage  = "Hello, are you ready? Answer with a single word."
	probeMaxTokens    = 50
)

// ProbeResult reports whether a model responded to a realistic prompt.
type ProbeResult struct {
	// OK is true when the model is reachable.
	OK bool
	// Warning is set when the model is reachable but replied with empty
	// or near-empty content, which predicts trouble in a session.
	Warning string
}

// Probe sends a small realistic completion to verify the model is usable
// before a session starts. Credits and auth failures surface as the same
// typed errors Complete produces.
func (c *Client) Probe(ctx context.Context, modelID string) (*ProbeResult, error) {
	if c.apiKey == "" {
		return nil, errors.NewCompletionError("gateway API key is missing", errors.ErrAuth)
	}

	payload := completionPayload{
		Model: modelID,
		Messages: []wireMessage{
			{Role: RoleSystem, Content: probeSystemPrompt},
			{Role: RoleUser, Content: probeUserMessage},
		},
		Temperature: c.temperature,
		MaxTokens:   probeMaxTokens,
	}

	resp, body, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.NewCompletionError("gateway rejected the API key", errors.ErrAuth).
			WithModel(modelID).
			WithStatusCode(resp.StatusCode)
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden:
		return nil, classifyCreditsError(modelID, resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.NewCompletionError(
			fmt.Sprintf("model probe failed: %s", errorDetail(body)), errors.ErrFormatRejected).
			WithModel(modelID).
			WithStatusCode(resp.StatusCode)
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewCompletionError("failed to decode probe response", errors.Join(errors.ErrTransient, err)).
			WithModel(modelID)
	}

	content := ""
	if len(parsed.Choices) > 0 {
		content = strings.TrimSpace(parsed.Choices[0].Message.Content)
	}
	if len(content) < 2 {
		return &ProbeResult{
			OK:      true,
			Warning: "model is reachable but returned an empty reply; it may stall during a session",
		}, nil
	}

	return &ProbeResult{OK: true}, nil
}

// modelsResponse mirrors the gateway's model listing payload.
type modelsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		ContextLength int    `json:"context_length"`
		Pricing       struct {
			Prompt     string `json:"prompt"`
			Completion string `json:"completion"`
		} `json:"pricing"`
	} `json:"data"`
}

// FetchModels lists the models the gateway advertises, sorted by context
// window descending. Pricing is converted from USD per token to USD per
// million tokens.
func (c *Client) FetchModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build models request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewCompletionError("failed to list models", errors.Join(errors.ErrTransient, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.NewCompletionError(
			fmt.Sprintf("model listing failed: %s", errorDetail(body)), errors.ErrTransient).
			WithStatusCode(resp.StatusCode)
	}

	var parsed modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewCompletionError("failed to decode model listing", errors.Join(errors.ErrTransient, err))
	}

	models := make([]Model, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		inputCost, _ := strconv.ParseFloat(m.Pricing.Prompt, 64)
		outputCost, _ := strconv.ParseFloat(m.Pricing.Completion, 64)
		models = append(models, Model{
			ID:            m.ID,
			Name:          m.Name,
			ContextWindow: m.ContextLength,
			InputCost:     inputCost * 1_000_000,
			OutputCost:    outputCost * 1_000_000,
			Description:   m.Description,
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ContextWindow > models[j].ContextWindow
	})
	return models, nil
}
