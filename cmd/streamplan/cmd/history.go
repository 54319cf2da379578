package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamplan/streamplan/internal/database"
	"github.com/streamplan/streamplan/internal/models"
	"github.com/streamplan/streamplan/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show recorded processing outcomes",
	Long: `List outcomes recorded by previous process runs, newest first.
With a path argument, only outcomes for that file are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of outcomes to show")
}

// lookupOutcomes runs exactly one query: outcomes for the given path, or
// the most recent outcomes overall when no path is given.
func lookupOutcomes(ctx context.Context, store *storage.OutcomeStore, args []string, limit int) ([]*models.Outcome, error) {
	if len(args) == 1 {
		return store.ForPath(ctx, args[0])
	}
	return store.Recent(ctx, limit)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.Database, slog.Default())
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating history database: %w", err)
	}

	store := storage.NewOutcomeStore(db.DB)
	ctx := context.Background()

	outcomes, err := lookupOutcomes(ctx, store, args, historyLimit)
	if err != nil {
		return err
	}

	if len(outcomes) == 0 {
		fmt.Println("no outcomes recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tSTATUS\tPOLICY\tSTREAMS\tDURATION\tPATH")
	for _, o := range outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			o.CreatedAt.Format("2006-01-02 15:04:05"),
			o.Status, o.Policy, o.StreamsChanged, o.Duration.Round(10*time.Millisecond), o.Path)
	}
	tw.Flush()

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\ntotal: converted %d, tested %d, skipped %d, deferred %d, failed %d\n",
		counts[models.OutcomeConverted], counts[models.OutcomeTested],
		counts[models.OutcomeSkipped], counts[models.OutcomeDeferred], counts[models.OutcomeFailed])

	return nil
}
