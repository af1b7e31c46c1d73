package config

import (
	"strings"
	"testing"
)

// validConfig returns a config that passes validation, for mutation in tests.
func validConfig() *Config {
	return Default()
}

func TestValidateLLM(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string // substring of the expected field; empty means valid
	}{
		{"defaults valid", func(c *Config) {}, ""},
		{"empty gateway url allowed", func(c *Config) { c.LLM.GatewayURL = "" }, ""},
		{"bad gateway url", func(c *Config) { c.LLM.GatewayURL = "not a url" }, "llm.gateway_url"},
		{"missing scheme", func(c *Config) { c.LLM.GatewayURL = "openrouter.ai/api" }, "llm.gateway_url"},
		{"zero timeout", func(c *Config) { c.LLM.RequestTimeoutSeconds = 0 }, "llm.request_timeout_seconds"},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "llm.max_retries"},
		{"excessive retries", func(c *Config) { c.LLM.MaxRetries = 11 }, "llm.max_retries"},
		{"bad cache glob", func(c *Config) { c.LLM.CacheProviders = []string{"[unclosed"} }, "llm.cache_providers"},
		{"valid cache globs", func(c *Config) { c.LLM.CacheProviders = []string{"anthropic/*", "*"} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			checkValidation(t, cfg, tt.wantErr)
		})
	}
}

func TestValidateDebate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero max rounds", func(c *Config) { c.Debate.MaxRounds = 0 }, "debate.max_rounds"},
		{"excessive max rounds", func(c *Config) { c.Debate.MaxRounds = 101 }, "debate.max_rounds"},
		{"negative min response length", func(c *Config) { c.Debate.MinResponseLength = -1 }, "debate.min_response_length"},
		{"zero empty-response attempts", func(c *Config) { c.Debate.EmptyResponseMaxAttempts = 0 }, "debate.empty_response_max_attempts"},
		{"zero history window", func(c *Config) { c.Debate.HistoryWindow = 0 }, "debate.history_window"},
		{"threshold zero", func(c *Config) { c.Debate.SimilarityThreshold = 0 }, "debate.similarity_threshold"},
		{"threshold above one", func(c *Config) { c.Debate.SimilarityThreshold = 1.01 }, "debate.similarity_threshold"},
		{"threshold exactly one", func(c *Config) { c.Debate.SimilarityThreshold = 1.0 }, ""},
		{"unknown auto mode", func(c *Config) { c.Debate.AutoMode = "turbo" }, "debate.auto_mode"},
		{"empty auto mode allowed", func(c *Config) { c.Debate.AutoMode = "" }, ""},
		{"negative auto delay", func(c *Config) { c.Debate.AutoDelayMs = -1 }, "debate.auto_delay_ms"},
		{"negative termination floor", func(c *Config) { c.Debate.MinRoundsBeforeTermination = -1 }, "debate.min_rounds_before_termination"},
		{"zero termination floor allowed", func(c *Config) { c.Debate.MinRoundsBeforeTermination = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			checkValidation(t, cfg, tt.wantErr)
		})
	}
}

func TestValidateLogging(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"case insensitive level", func(c *Config) { c.Logging.Level = "DEBUG" }, ""},
		{"empty level allowed", func(c *Config) { c.Logging.Level = "" }, ""},
		{"negative max size", func(c *Config) { c.Logging.MaxSizeMB = -1 }, "logging.max_size_mb"},
		{"negative max backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			checkValidation(t, cfg, tt.wantErr)
		})
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{{Field: "debate.max_rounds", Value: 0, Message: "must be at least 1"}}
		msg := errs.Error()
		if !strings.Contains(msg, "debate.max_rounds") || !strings.Contains(msg, "must be at least 1") {
			t.Errorf("unexpected message: %q", msg)
		}
	})

	t.Run("multiple errors numbered", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "a", Value: 1, Message: "bad"},
			{Field: "b", Value: 2, Message: "worse"},
		}
		msg := errs.Error()
		if !strings.Contains(msg, "2 validation errors") {
			t.Errorf("expected error count header, got: %q", msg)
		}
		if !strings.Contains(msg, "1. ") || !strings.Contains(msg, "2. ") {
			t.Errorf("expected numbered entries, got: %q", msg)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if msg := (ValidationErrors{}).Error(); msg != "" {
			t.Errorf("empty errors should produce empty message, got %q", msg)
		}
	})
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Debate.MaxRounds = 0
	cfg.LLM.MaxRetries = -1
	cfg.Logging.Level = "trace"

	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(errs), ValidationErrors(errs))
	}
}

// checkValidation asserts that cfg validates cleanly when wantField is empty,
// or produces an error mentioning wantField otherwise.
func checkValidation(t *testing.T, cfg *Config, wantField string) {
	t.Helper()

	errs := cfg.Validate()
	if wantField == "" {
		if len(errs) > 0 {
			t.Errorf("expected valid config, got errors: %v", ValidationErrors(errs))
		}
		return
	}

	for _, err := range errs {
		if err.Field == wantField {
			return
		}
	}
	t.Errorf("expected error on field %q, got: %v", wantField, ValidationErrors(errs))
}
