package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tetra-labs/tetra/internal/archive"
	"github.com/tetra-labs/tetra/internal/config"
	"github.com/tetra-labs/tetra/internal/logging"
	"github.com/tetra-labs/tetra/internal/util"
)

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "Manage archived debate sessions",
	Long:  `Commands for listing, showing, and deleting archived debate records.`,
}

var archivesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions",
	RunE:  runArchivesList,
}

var archivesShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Print the transcript of an archived session",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchivesShow,
}

var archivesDeleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete an archived session record",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchivesDelete,
}

func init() {
	rootCmd.AddCommand(archivesCmd)
	archivesCmd.AddCommand(archivesListCmd)
	archivesCmd.AddCommand(archivesShowCmd)
	archivesCmd.AddCommand(archivesDeleteCmd)
}

func openArchiveStore() (*archive.Store, error) {
	cfg := config.Get()
	store, err := archive.NewStore(cfg.Archive.ResolveDir(config.DataDir()), logging.NopLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to open archive directory: %w", err)
	}
	return store, nil
}

func runArchivesList(cmd *cobra.Command, args []string) error {
	store, err := openArchiveStore()
	if err != nil {
		return err
	}

	summaries, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("No archived sessions.")
		fmt.Println("Run 'tetra run <debate-file>' to hold one.")
		return nil
	}

	fmt.Println(strings.Repeat("─", 70))
	fmt.Printf("Archived sessions in %s\n", store.Dir())
	fmt.Println(strings.Repeat("─", 70))
	fmt.Println()

	for _, s := range summaries {
		status := "completed"
		if !s.Completed {
			status = "partial"
		}
		fmt.Printf("  %s\n", util.TruncateANSI(styleSpeaker.Render(s.Topic), 66))
		fmt.Printf("    Archived: %s  Status: %s\n", s.ArchivedAt.Format(time.RFC822), status)
		fmt.Printf("    Rounds: %d  Messages: %d  Cost: %s\n", s.Rounds, s.Messages, formatCost(s.TotalCost))
		fmt.Printf("    Path:   %s\n", s.Path)
		fmt.Println()
	}

	fmt.Println("To view a transcript: tetra archives show <path>")
	return nil
}

func runArchivesShow(cmd *cobra.Command, args []string) error {
	store, err := openArchiveStore()
	if err != nil {
		return err
	}

	rec, err := store.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load archive: %w", err)
	}

	if rec.Transcript != "" {
		fmt.Print(rec.Transcript)
		return nil
	}

	// No embedded transcript; print a short header instead.
	fmt.Printf("Topic: %s\n", rec.Topic)
	fmt.Printf("Rounds: %d  Messages: %d  Tokens: %d  Cost: %s\n",
		len(rec.Rounds), len(rec.Messages), rec.TotalTokens, formatCost(rec.TotalCost))
	return nil
}

func runArchivesDelete(cmd *cobra.Command, args []string) error {
	store, err := openArchiveStore()
	if err != nil {
		return err
	}

	if err := store.Delete(args[0]); err != nil {
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	fmt.Printf("Deleted: %s\n", args[0])
	return nil
}
