package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tetra-labs/tetra/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tetra",
	Short: "Multi-agent LLM debate orchestrator",
	Long: `Tetra runs structured debates between LLM participants through an
OpenAI-compatible completion gateway. A moderator opens and closes each
round, participants speak in a fixed rotation, and every completed round
is distilled into a structured summary that feeds the turns after it.`,
}

// Execute dispatches to the selected subcommand.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/tetra/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults apply even when no config file is present.
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/tetra")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TETRA")
	// Nested keys map to env vars with underscores, so llm.gateway_url
	// reads TETRA_LLM_GATEWAY_URL.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine; defaults and env cover it.
	_ = viper.ReadInConfig()
}
