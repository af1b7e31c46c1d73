package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tetra-labs/tetra/internal/config"
	"github.com/tetra-labs/tetra/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify Tetra configuration",
	Long: `View or modify Tetra configuration.

With no subcommand, prints the active configuration. Subcommands change
individual settings or write a starter config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Write a single configuration value to the user's config file.

Keys use dot notation:
  tetra config set debate.max_rounds 8
  tetra config set debate.auto_mode semi
  tetra config set logging.level debug

Valid keys:
  llm.gateway_url              - Completion gateway base URL
  llm.max_retries              - Retries for transient gateway failures
  llm.request_timeout_seconds  - Per-request timeout in seconds
  debate.max_rounds            - Round limit before auto-finish
  debate.auto_mode             - Initial auto-play mode (manual, semi, full)
  debate.auto_delay_ms         - Delay between automatic turns
  debate.history_window        - Messages of context per turn
  debate.similarity_threshold  - Repetition-loop rejection threshold
  archive.dir                  - Directory for archived sessions
  logging.enabled              - Enable file logging (true/false)
  logging.level                - Log level (debug, info, warn, error)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/tetra/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("llm:")
	fmt.Printf("  gateway_url: %s\n", cfg.LLM.GatewayURL)
	fmt.Printf("  api_key_env: %s", cfg.LLM.APIKeyEnv)
	if cfg.LLM.APIKey() == "" {
		fmt.Print("  (not set)")
	}
	fmt.Println()
	fmt.Printf("  request_timeout_seconds: %d\n", cfg.LLM.RequestTimeoutSeconds)
	fmt.Printf("  max_retries: %d\n", cfg.LLM.MaxRetries)
	fmt.Printf("  cache_providers: %s\n", strings.Join(cfg.LLM.CacheProviders, ", "))

	fmt.Println("debate:")
	fmt.Printf("  max_rounds: %d\n", cfg.Debate.MaxRounds)
	fmt.Printf("  auto_mode: %s\n", cfg.Debate.AutoMode)
	fmt.Printf("  auto_delay_ms: %d\n", cfg.Debate.AutoDelayMs)
	fmt.Printf("  history_window: %d\n", cfg.Debate.HistoryWindow)
	fmt.Printf("  similarity_threshold: %.2f\n", cfg.Debate.SimilarityThreshold)
	fmt.Printf("  min_response_length: %d\n", cfg.Debate.MinResponseLength)
	fmt.Printf("  empty_response_max_attempts: %d\n", cfg.Debate.EmptyResponseMaxAttempts)
	fmt.Printf("  min_rounds_before_termination: %d\n", cfg.Debate.MinRoundsBeforeTermination)

	fmt.Println("archive:")
	fmt.Printf("  dir: %s\n", cfg.Archive.ResolveDir(config.DataDir()))

	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	if dir := cfg.Logging.ResolveDir(config.DataDir()); dir != "" {
		fmt.Printf("  dir: %s\n", dir)
	}

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	validKeys := map[string]string{
		"llm.gateway_url":             "string",
		"llm.max_retries":             "int",
		"llm.request_timeout_seconds": "int",
		"debate.max_rounds":           "int",
		"debate.auto_mode":            "string",
		"debate.auto_delay_ms":        "int",
		"debate.history_window":       "int",
		"debate.similarity_threshold": "float",
		"archive.dir":                 "string",
		"logging.enabled":             "bool",
		"logging.level":               "string",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'tetra config set --help' to see valid keys", key)
	}

	var typedValue interface{}
	switch keyType {
	case "string":
		if key == "debate.auto_mode" && !config.IsValidAutoMode(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidAutoModes(), ", "))
		}
		if key == "logging.level" && !slices.Contains(logging.ValidLevels(), strings.ToUpper(value)) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.ToLower(strings.Join(logging.ValidLevels(), ", ")))
		}
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	case "float":
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected number", key)
		}
		if floatVal < 0 || floatVal > 1 {
			return fmt.Errorf("invalid value for %s: must be between 0 and 1", key)
		}
		typedValue = floatVal
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set(key, typedValue)

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'tetra config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configContent := `# Tetra configuration

llm:
  # OpenAI-compatible completion gateway
  gateway_url: "https://openrouter.ai/api/v1"
  # Environment variable holding the gateway API key
  api_key_env: "OPENROUTER_API_KEY"
  request_timeout_seconds: 90
  max_retries: 3
  # Backend ID patterns that support prompt-cache hints
  cache_providers:
    - "anthropic/*"
    - "google/gemini-*"
    - "openai/*"

debate:
  # Round limit before the session auto-finishes
  max_rounds: 12
  # Initial auto-play mode: manual, semi, or full
  auto_mode: "manual"
  # Delay between automatic turns in milliseconds
  auto_delay_ms: 1500
  # Messages of conversation context per turn
  history_window: 10
  # Jaccard overlap above which a reply is rejected as a repetition loop
  similarity_threshold: 0.85
  min_response_length: 10
  empty_response_max_attempts: 3
  min_rounds_before_termination: 3

archive:
  # Directory for archived sessions (default: <data dir>/archives)
  dir: ""

logging:
  enabled: true
  # debug, info, warn, or error
  level: "info"
  max_size_mb: 10
  max_backups: 3
  compress: false
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.ConfigFile())
	return nil
}
