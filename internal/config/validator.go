package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError is a single rejected config value.
type ValidationError struct {
	Field   string // dotted config path, e.g. "debate.max_rounds"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors aggregates every rejected value into one error.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels lists the accepted logging.level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

func bad(field string, value any, msg string) ValidationError {
	return ValidationError{Field: field, Value: value, Message: msg}
}

// Validate checks every section and reports all rejected values, not
// just the first.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateLLM()...)
	errs = append(errs, c.validateDebate()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

func (c *Config) validateLLM() []ValidationError {
	var errs []ValidationError

	if c.LLM.GatewayURL != "" {
		u, err := url.Parse(c.LLM.GatewayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, bad("llm.gateway_url", c.LLM.GatewayURL, "must be a valid URL with scheme and host"))
		}
	}
	if c.LLM.RequestTimeoutSeconds <= 0 {
		errs = append(errs, bad("llm.request_timeout_seconds", c.LLM.RequestTimeoutSeconds, "must be positive"))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, bad("llm.max_retries", c.LLM.MaxRetries, "must be non-negative"))
	}
	// Capped so misconfiguration cannot stall a turn for minutes.
	const maxRetriesLimit = 10
	if c.LLM.MaxRetries > maxRetriesLimit {
		errs = append(errs, bad("llm.max_retries", c.LLM.MaxRetries, fmt.Sprintf("exceeds maximum of %d", maxRetriesLimit)))
	}
	for _, pattern := range c.LLM.CacheProviders {
		if _, err := glob.Compile(pattern); err != nil {
			errs = append(errs, bad("llm.cache_providers", pattern, fmt.Sprintf("invalid glob pattern: %v", err)))
		}
	}
	return errs
}

func (c *Config) validateDebate() []ValidationError {
	var errs []ValidationError
	d := &c.Debate

	if d.MaxRounds < 1 {
		errs = append(errs, bad("debate.max_rounds", d.MaxRounds, "must be at least 1"))
	}
	const maxRoundsLimit = 100
	if d.MaxRounds > maxRoundsLimit {
		errs = append(errs, bad("debate.max_rounds", d.MaxRounds, fmt.Sprintf("exceeds maximum of %d", maxRoundsLimit)))
	}
	if d.MinResponseLength < 0 {
		errs = append(errs, bad("debate.min_response_length", d.MinResponseLength, "must be non-negative"))
	}
	if d.EmptyResponseMaxAttempts < 1 {
		errs = append(errs, bad("debate.empty_response_max_attempts", d.EmptyResponseMaxAttempts, "must be at least 1"))
	}
	if d.HistoryWindow < 1 {
		errs = append(errs, bad("debate.history_window", d.HistoryWindow, "must be at least 1"))
	}
	if d.SimilarityThreshold <= 0 || d.SimilarityThreshold > 1 {
		errs = append(errs, bad("debate.similarity_threshold", d.SimilarityThreshold, "must be in (0, 1]"))
	}
	if d.AutoMode != "" && !IsValidAutoMode(d.AutoMode) {
		errs = append(errs, bad("debate.auto_mode", d.AutoMode, "must be one of: "+strings.Join(ValidAutoModes(), ", ")))
	}
	if d.AutoDelayMs < 0 {
		errs = append(errs, bad("debate.auto_delay_ms", d.AutoDelayMs, "must be non-negative"))
	}
	if d.MinRoundsBeforeTermination < 0 {
		errs = append(errs, bad("debate.min_rounds_before_termination", d.MinRoundsBeforeTermination, "must be non-negative"))
	}
	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, bad("logging.level", c.Logging.Level, "must be one of: "+strings.Join(ValidLogLevels(), ", ")))
	}
	if c.Logging.MaxSizeMB < 0 {
		errs = append(errs, bad("logging.max_size_mb", c.Logging.MaxSizeMB, "must be non-negative"))
	}
	if c.Logging.MaxBackups < 0 {
		errs = append(errs, bad("logging.max_backups", c.Logging.MaxBackups, "must be non-negative"))
	}
	return errs
}
