package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tetra-labs/tetra/internal/config"
	"github.com/tetra-labs/tetra/internal/event"
	"github.com/tetra-labs/tetra/internal/logging"
	"github.com/tetra-labs/tetra/internal/util"
)

var modelsCmd = &cobra.Command{
	Use:   "models [filter]",
	Short: "List models advertised by the completion gateway",
	Long: `List the models the configured gateway advertises, with context
window sizes and per-million-token pricing. An optional filter argument
matches against model IDs and names.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := newGatewayClient(cfg, event.NewBus(), logging.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.RequestTimeout())
	defer cancel()

	models, err := client.FetchModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch models: %w", err)
	}

	filter := ""
	if len(args) > 0 {
		filter = strings.ToLower(args[0])
	}

	shown := 0
	for _, m := range models {
		if filter != "" &&
			!strings.Contains(strings.ToLower(m.ID), filter) &&
			!strings.Contains(strings.ToLower(m.Name), filter) {
			continue
		}
		shown++

		fmt.Println(styleSpeaker.Render(m.ID))
		if m.ContextWindow > 0 {
			fmt.Printf("  context: %s", formatTokens(m.ContextWindow))
			if m.InputCost > 0 || m.OutputCost > 0 {
				fmt.Printf("  pricing: $%.2f in / $%.2f out per 1M", m.InputCost, m.OutputCost)
			}
			fmt.Println()
		}
		if m.Description != "" {
			fmt.Printf("  %s\n", util.TruncateString(m.Description, 100))
		}
	}

	if shown == 0 {
		if filter != "" {
			fmt.Printf("No models match %q.\n", filter)
		} else {
			fmt.Println("The gateway advertised no models.")
		}
		return nil
	}
	fmt.Printf("\n%d model(s)\n", shown)
	return nil
}
