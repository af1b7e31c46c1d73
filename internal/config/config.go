package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Tetra configuration
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Debate  DebateConfig  `mapstructure:"debate"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LLMConfig controls the completion gateway client
type LLMConfig struct {
	// GatewayURL is the base URL of the OpenAI-compatible completion gateway
	GatewayURL string `mapstructure:"gateway_url"`
	// APIKeyEnv names the environment variable holding the gateway API key.
	// The key itself is never stored in the config file.
	APIKeyEnv string `mapstructure:"api_key_env"`
	// RequestTimeoutSeconds is the per-request timeout (default: 90)
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	// MaxRetries is the number of retries after the initial attempt for
	// transient failures (default: 3)
	MaxRetries int `mapstructure:"max_retries"`
	// Referer and Title are sent as attribution headers to the gateway
	Referer string `mapstructure:"referer"`
	Title   string `mapstructure:"title"`
	// CacheProviders are glob patterns matching backend IDs that support
	// prompt-cache hints (e.g. "anthropic/*", "google/gemini-*")
	CacheProviders []string `mapstructure:"cache_providers"`
}

// DebateConfig controls turn scheduling and session behavior
type DebateConfig struct {
	// MaxRounds is the round limit before the session auto-finishes (default: 12)
	MaxRounds int `mapstructure:"max_rounds"`
	// MinResponseLength is the minimum character count for a reply to be
	// accepted as substantive (default: 10)
	MinResponseLength int `mapstructure:"min_response_length"`
	// EmptyResponseMaxAttempts is the total number of attempts (initial plus
	// retries) before a participant is put up for disqualification (default: 3)
	EmptyResponseMaxAttempts int `mapstructure:"empty_response_max_attempts"`
	// HistoryWindow is the number of most recent messages included in each
	// participant's context (default: 10)
	HistoryWindow int `mapstructure:"history_window"`
	// SimilarityThreshold is the Jaccard overlap above which a reply is
	// rejected as a repetition loop (default: 0.85)
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// AutoMode is the initial auto-play mode: "manual", "semi", or "full"
	AutoMode string `mapstructure:"auto_mode"`
	// AutoDelayMs is the pause between automatic turns in milliseconds
	AutoDelayMs int `mapstructure:"auto_delay_ms"`
	// MinRoundsBeforeTermination is the number of elapsed rounds required
	// before a moderator termination marker is honored (default: 3)
	MinRoundsBeforeTermination int `mapstructure:"min_rounds_before_termination"`
}

// ArchiveConfig controls where session records are stored
type ArchiveConfig struct {
	// Dir is the directory for archived session records.
	// If empty, defaults to "archives" under the data directory.
	// Supports ~ for home directory expansion.
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls structured logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the log directory. If empty, defaults to "logs" under the
	// data directory.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// RequestTimeout returns the gateway request timeout as a time.Duration
func (c *LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// APIKey resolves the gateway API key from the configured environment variable
func (c *LLMConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// AutoDelay returns the auto-play delay as a time.Duration
func (c *DebateConfig) AutoDelay() time.Duration {
	return time.Duration(c.AutoDelayMs) * time.Millisecond
}

// ResolveDir returns the resolved archive directory path.
// If Dir is empty, it returns the default path under baseDir.
// If Dir starts with ~, it expands to the user's home directory.
// Relative paths are resolved relative to baseDir.
func (a *ArchiveConfig) ResolveDir(baseDir string) string {
	return resolvePath(a.Dir, baseDir, "archives")
}

// ResolveDir returns the resolved log directory path, applying the same
// expansion rules as ArchiveConfig.ResolveDir.
func (l *LoggingConfig) ResolveDir(baseDir string) string {
	if !l.Enabled {
		return ""
	}
	return resolvePath(l.Dir, baseDir, "logs")
}

func resolvePath(path, baseDir, defaultName string) string {
	if path == "" {
		return filepath.Join(baseDir, defaultName)
	}

	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	} else if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	if !filepath.IsAbs(path) {
		return filepath.Join(baseDir, path)
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			GatewayURL:            "https://openrouter.ai/api/v1",
			APIKeyEnv:             "OPENROUTER_API_KEY",
			RequestTimeoutSeconds: 90,
			MaxRetries:            3,
			Referer:               "https://github.com/tetra-labs/tetra",
			Title:                 "Tetra",
			CacheProviders:        []string{"anthropic/*", "google/gemini-*", "openai/*"},
		},
		Debate: DebateConfig{
			MaxRounds:                  12,
			MinResponseLength:          10,
			EmptyResponseMaxAttempts:   3,
			HistoryWindow:              10,
			SimilarityThreshold:        0.85,
			AutoMode:                   "manual",
			AutoDelayMs:                1500,
			MinRoundsBeforeTermination: 3,
		},
		Archive: ArchiveConfig{
			Dir: "", // Empty means use default: <data dir>/archives
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "", // Empty means use default: <data dir>/logs
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// LLM defaults
	viper.SetDefault("llm.gateway_url", defaults.LLM.GatewayURL)
	viper.SetDefault("llm.api_key_env", defaults.LLM.APIKeyEnv)
	viper.SetDefault("llm.request_timeout_seconds", defaults.LLM.RequestTimeoutSeconds)
	viper.SetDefault("llm.max_retries", defaults.LLM.MaxRetries)
	viper.SetDefault("llm.referer", defaults.LLM.Referer)
	viper.SetDefault("llm.title", defaults.LLM.Title)
	viper.SetDefault("llm.cache_providers", defaults.LLM.CacheProviders)

	// Debate defaults
	viper.SetDefault("debate.max_rounds", defaults.Debate.MaxRounds)
	viper.SetDefault("debate.min_response_length", defaults.Debate.MinResponseLength)
	viper.SetDefault("debate.empty_response_max_attempts", defaults.Debate.EmptyResponseMaxAttempts)
	viper.SetDefault("debate.history_window", defaults.Debate.HistoryWindow)
	viper.SetDefault("debate.similarity_threshold", defaults.Debate.SimilarityThreshold)
	viper.SetDefault("debate.auto_mode", defaults.Debate.AutoMode)
	viper.SetDefault("debate.auto_delay_ms", defaults.Debate.AutoDelayMs)
	viper.SetDefault("debate.min_rounds_before_termination", defaults.Debate.MinRoundsBeforeTermination)

	// Archive defaults
	viper.SetDefault("archive.dir", defaults.Archive.Dir)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tetra")
	}
	// Fall back to ~/.config/tetra
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tetra"
	}
	return filepath.Join(home, ".config", "tetra")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the path to the user's data directory.
// Archives and logs default to subdirectories of this path.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tetra")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tetra"
	}
	return filepath.Join(home, ".local", "share", "tetra")
}

// ValidAutoModes returns the list of valid auto-play mode values
func ValidAutoModes() []string {
	return []string{"manual", "semi", "full"}
}

// IsValidAutoMode checks if the given mode is valid
func IsValidAutoMode(mode string) bool {
	for _, valid := range ValidAutoModes() {
		if mode == valid {
			return true
		}
	}
	return false
}
