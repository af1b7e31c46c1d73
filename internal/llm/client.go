package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/tetra-labs/tetra/internal/errors"
	"github.com/tetra-labs/tetra/internal/event"
	"github.com/tetra-labs/tetra/internal/logging"
	"github.com/tetra-labs/tetra/internal/retry"
)

// Gateway statuses worth retrying: rate limiting and upstream gateway
// failures. Everything else is either permanent or needs a format change.
var retryableStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
	520, // origin returned an unknown error
	522, // origin connection timed out
	524, // origin response timed out
}

// Substrings that identify a 402/403 body as a credits or quota problem
// rather than a permissions one.
var creditsKeywords = []string{"limit exceeded", "insufficient", "credit", "balance", "quota"}

// Options configures a Client.
type Options struct {
	// BaseURL is the gateway root, e.g. "https://openrouter.ai/api/v1".
	BaseURL string
	// APIKey authorizes requests. Leading and trailing whitespace is
	// stripped; pasted keys often carry an invisible newline.
	APIKey string
	// Timeout is the per-request deadline. Zero means 90 seconds.
	Timeout time.Duration
	// Retry is the backoff policy for transient failures.
	Retry retry.Policy
	// Referer and Title are sent as attribution headers.
	Referer string
	Title   string
	// HTTPClient overrides the transport, primarily for tests.
	HTTPClient *http.Client
}

// Client is the production Completer. It is safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	referer     string
	title       string
	temperature float64

	httpClient *http.Client
	policy     retry.Policy
	profile    *Profile
	registry   *IncompatibleRegistry
	bus        *event.Bus
	logger     *logging.Logger
}

// NewClient creates a gateway client. The profile decides cache-hint
// eligibility, the registry carries learned incompatibilities across
// requests, and the bus receives completion telemetry events.
func NewClient(opts Options, profile *Profile, registry *IncompatibleRegistry, bus *event.Bus, logger *logging.Logger) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	if logger == nil {
		logger = logging.NopLogger()
	}
	if bus == nil {
		bus = event.NewBus()
	}
	if registry == nil {
		registry = NewIncompatibleRegistry()
	}
	if profile == nil {
		profile = NewProfile(nil)
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      strings.TrimSpace(opts.APIKey),
		referer:     opts.Referer,
		title:       opts.Title,
		temperature: 0.7,
		httpClient:  httpClient,
		policy:      opts.Retry,
		profile:     profile,
		registry:    registry,
		bus:         bus,
		logger:      logger,
	}
}

// wire types for the chat completion protocol

type contentPart struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

// wireMessage carries either a plain string content or a content-part list.
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type providerOptions struct {
	AllowFallbacks bool `json:"allow_fallbacks"`
}

type completionPayload struct {
	Model       string           `json:"model"`
	Messages    []wireMessage    `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Provider    *providerOptions `json:"provider,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens         int `json:"total_tokens"`
		PromptTokens        int `json:"prompt_tokens"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
		CacheReadInputTokens int `json:"cache_read_input_tokens"`
	} `json:"usage"`
	CacheDiscount float64 `json:"cache_discount"`
}

type errorResponse struct {
	Error struct {
		Message  string `json:"message"`
		Code     any    `json:"code"`
		Metadata struct {
			ProviderError string `json:"provider_error"`
			Raw           string `json:"raw"`
		} `json:"metadata"`
	} `json:"error"`
}

// Complete sends a chat completion request, retrying transient failures and
// falling back to the plain request format when a cache-hinted payload is
// rejected. The fallback attempt does not count against the retry budget.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	if c.apiKey == "" {
		return nil, errors.NewCompletionError("gateway API key is missing", errors.ErrAuth).
			WithHint("set the API key environment variable named in llm.api_key_env")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, errors.New("completion request has no model")
	}

	log := c.logger.WithModel(req.Model)

	cacheHinted := c.profile.SupportsCacheHints(req.Model) && !c.registry.IsIncompatible(req.Model)
	payload := c.buildPayload(req, cacheHinted)

	var (
		result     *Result
		calls      int
		lastReason string
	)
	err := retry.Do(ctx, c.policy, errors.IsRetryable, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			c.bus.Publish(event.NewCompletionAttemptEvent(req.Model, attempt, c.policy.MaxRetries, lastReason))
			log.Warn("retrying completion", "attempt", attempt, "max_retries", c.policy.MaxRetries, "reason", lastReason)
		}
		calls++

		res, reason, err := c.attempt(ctx, req, payload, cacheHinted, log)
		if err != nil {
			lastReason = reason
			if lastReason == "" {
				lastReason = err.Error()
			}
			return err
		}
		result = res
		return nil
	})
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errors.ErrCanceled):
		return nil, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Canceled while sleeping between attempts.
		return nil, errors.NewCompletionError("completion canceled during backoff", errors.Join(errors.ErrCanceled, err)).
			WithModel(req.Model)
	case errors.IsRetryable(err):
		return nil, errors.NewCompletionError("retries exhausted", err).
			WithModel(req.Model).
			WithAttempts(calls)
	default:
		return nil, err
	}
}

// attempt performs one request cycle. A non-empty retryReason labels a
// retryable failure for telemetry; terminal failures carry the reason in
// the error itself.
func (c *Client) attempt(ctx context.Context, req Request, payload completionPayload, cacheHinted bool, log *logging.Logger) (result *Result, retryReason string, err error) {
	resp, body, err := c.post(ctx, payload)
	if err != nil {
		return nil, "", err
	}

	if slices.Contains(retryableStatuses, resp.StatusCode) {
		return nil, fmt.Sprintf("status %d", resp.StatusCode), errors.NewCompletionError(
			fmt.Sprintf("gateway returned status %d", resp.StatusCode), errors.ErrTransient).
			WithModel(req.Model).
			WithStatusCode(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden {
		if err := classifyCreditsError(req.Model, resp.StatusCode, body); err != nil {
			return nil, "", err
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, "", errors.NewCompletionError("gateway rejected the API key", errors.ErrAuth).
			WithModel(req.Model).
			WithStatusCode(resp.StatusCode).
			WithHint("the key may be invalid or revoked; check the gateway key settings")
	}

	if resp.StatusCode != http.StatusOK {
		detail := errorDetail(body)
		log.Warn("completion rejected", "status", resp.StatusCode, "detail", detail)

		if cacheHinted {
			return c.fallback(ctx, req, log)
		}

		return nil, "", errors.NewCompletionError(
			fmt.Sprintf("model access failed: %s", detail), errors.ErrFormatRejected).
			WithModel(req.Model).
			WithStatusCode(resp.StatusCode)
	}

	result, err = c.parseResult(req.Model, body, log)
	if err != nil {
		return nil, "", err
	}
	return result, "", nil
}

// fallback retries once with the plain request format and, on success,
// permanently marks the model cache-incompatible.
func (c *Client) fallback(ctx context.Context, req Request, log *logging.Logger) (*Result, string, error) {
	c.bus.Publish(event.NewFallbackStartedEvent(req.Model))
	log.Info("cache-hinted format rejected, retrying with plain format")

	plain := c.buildPayload(req, false)
	resp, body, err := c.post(ctx, plain)
	if err != nil {
		c.bus.Publish(event.NewFallbackFinishedEvent(req.Model, false))
		return nil, "", err
	}

	c.markIncompatible(req.Model, log)

	if resp.StatusCode != http.StatusOK {
		c.bus.Publish(event.NewFallbackFinishedEvent(req.Model, false))
		return nil, "", errors.NewCompletionError(
			fmt.Sprintf("model access failed: %s", errorDetail(body)), errors.ErrFormatRejected).
			WithModel(req.Model).
			WithStatusCode(resp.StatusCode)
	}

	result, err := c.parseResult(req.Model, body, log)
	if err != nil {
		c.bus.Publish(event.NewFallbackFinishedEvent(req.Model, false))
		return nil, "", err
	}

	result.FallbackUsed = true
	c.bus.Publish(event.NewFallbackFinishedEvent(req.Model, true))
	return result, "", nil
}

// post sends the payload and returns the response with its fully-read body.
func (c *Client) post(ctx context.Context, payload completionPayload) (*http.Response, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, errors.NewCompletionError("completion canceled", errors.Join(errors.ErrCanceled, ctx.Err())).
				WithModel(payload.Model)
		}
		// Client-side timeouts and connection failures are transient.
		return nil, nil, errors.NewCompletionError("gateway request failed", errors.Join(errors.ErrTimeout, err)).
			WithModel(payload.Model)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.NewCompletionError("failed to read gateway response", errors.Join(errors.ErrTransient, err)).
			WithModel(payload.Model)
	}
	return resp, body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}
}

// buildPayload assembles the wire payload. When cacheHinted is true the
// system prompt is sent as a content-part list with an ephemeral
// cache_control marker, and provider fallback routing is disabled so
// cache-warmed requests land on the same node.
func (c *Client) buildPayload(req Request, cacheHinted bool) completionPayload {
	messages := make([]wireMessage, 0, len(req.History)+1)

	if req.SystemPrompt != "" {
		if cacheHinted {
			messages = append(messages, wireMessage{
				Role: RoleSystem,
				Content: []contentPart{{
					Type:         "text",
					Text:         req.SystemPrompt,
					CacheControl: &cacheControl{Type: "ephemeral"},
				}},
			})
		} else {
			messages = append(messages, wireMessage{Role: RoleSystem, Content: req.SystemPrompt})
		}
	}

	history := req.History
	if len(history) == 0 {
		history = []ChatMessage{{Role: RoleUser, Content: "Please begin."}}
	}
	for _, msg := range history {
		messages = append(messages, wireMessage{Role: msg.Role, Content: msg.Content})
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	payload := completionPayload{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   c.profile.MaxTokens(req.Model, req.ContextWindow),
	}
	if cacheHinted {
		payload.Provider = &providerOptions{AllowFallbacks: false}
	}
	return payload
}

// parseResult decodes a successful response, extracting cache telemetry
// reported in either the OpenAI or the Anthropic usage field.
func (c *Client) parseResult(model string, body []byte, log *logging.Logger) (*Result, error) {
	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.NewCompletionError("failed to decode gateway response", errors.Join(errors.ErrTransient, err)).
			WithModel(model)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.NewCompletionError("gateway returned no choices", errors.ErrEmptyResponse).
			WithModel(model)
	}

	cachedTokens := resp.Usage.PromptTokensDetails.CachedTokens
	if resp.Usage.CacheReadInputTokens > 0 {
		cachedTokens = resp.Usage.CacheReadInputTokens
	}

	if cachedTokens > 0 {
		promptTokens := resp.Usage.PromptTokens
		if promptTokens == 0 {
			promptTokens = 1
		}
		savedPercent := cachedTokens * 100 / promptTokens
		c.bus.Publish(event.NewCacheHitEvent(model, cachedTokens, savedPercent))
		log.Debug("prompt cache hit", "cached_tokens", cachedTokens, "saved_percent", savedPercent)
	}

	return &Result{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			TotalTokens:  resp.Usage.TotalTokens,
			PromptTokens: resp.Usage.PromptTokens,
			CachedTokens: cachedTokens,
		},
		Cost:          float64(resp.Usage.TotalTokens) / 1_000_000,
		CacheDiscount: resp.CacheDiscount,
	}, nil
}

func (c *Client) markIncompatible(model string, log *logging.Logger) {
	if c.registry.Mark(model) {
		c.bus.Publish(event.NewBackendIncompatibleEvent(model))
		log.Warn("model marked cache-incompatible, later requests use the plain format")
	}
}

// classifyCreditsError inspects a 402/403 body. A 402, or a 403 whose body
// mentions credits or quota, is a permanent credits failure. A 403 without
// credit keywords is a permissions failure.
func classifyCreditsError(model string, status int, body []byte) error {
	detail := errorDetail(body)
	lower := strings.ToLower(detail)

	isCredits := status == http.StatusPaymentRequired
	if !isCredits {
		for _, kw := range creditsKeywords {
			if strings.Contains(lower, kw) {
				isCredits = true
				break
			}
		}
	}

	if isCredits {
		return errors.NewCompletionError("gateway credits exhausted", errors.ErrCreditsExhausted).
			WithModel(model).
			WithStatusCode(status).
			WithHint("add credits to the gateway account or switch to a free model")
	}

	return errors.NewCompletionError(
		fmt.Sprintf("gateway denied access: %s", detail), errors.ErrAuth).
		WithModel(model).
		WithStatusCode(status)
}

// errorDetail flattens the gateway error body into a single line, joining
// the top-level message with any provider-level detail.
func errorDetail(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if len(body) == 0 {
			return "no error detail"
		}
		s := strings.TrimSpace(string(body))
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{resp.Error.Metadata.ProviderError, resp.Error.Message, resp.Error.Metadata.Raw} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "no error detail"
	}
	return strings.Join(parts, " | ")
}
