package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/streamplan/streamplan/internal/probe"
	"github.com/streamplan/streamplan/internal/runner"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>...",
	Short: "Show stream layout and policy verdicts for media files",
	Long: `Probe each file with ffprobe and evaluate every enabled policy
against it, printing the stream layout and which policies would
process the file. Nothing is modified.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()
	policies, err := buildPolicies(cfg, logger)
	if err != nil {
		return fmt.Errorf("building policies: %w", err)
	}

	r := runner.New(runner.Options{
		Prober:   probe.NewProber(cfg.FFmpeg.ProbePath).WithTimeout(cfg.FFmpeg.ProbeTimeout),
		Policies: policies,
		Logger:   logger,
	})

	ctx := context.Background()
	failed := 0
	for _, path := range args {
		if err := inspectFile(ctx, r, path); err != nil {
			logger.Error("inspect failed",
				slog.String("file", path),
				slog.String("error", err.Error()),
			)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) could not be inspected", failed, len(args))
	}
	return nil
}

func inspectFile(ctx context.Context, r *runner.Runner, path string) error {
	result, err := r.Test(ctx, path)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", path)
	fmt.Printf("  container: %s, duration: %.1fs\n\n",
		result.Probe.Format.FormatName, result.Probe.DurationSeconds())

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  INDEX\tTYPE\tCODEC\tCHANNELS\tLANGUAGE\tTITLE")
	for _, s := range result.Probe.Streams {
		lang, _ := s.Language()
		title, _ := s.Title()
		channels := ""
		if s.CodecType == probe.CodecTypeAudio {
			channels = fmt.Sprintf("%d", s.Channels)
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%s\n",
			s.Index, s.CodecType, s.CodecName, channels, lang, title)
	}
	tw.Flush()

	fmt.Println()
	for _, v := range result.Verdicts {
		verdict := "no work needed"
		if v.NeedsProcessing {
			verdict = fmt.Sprintf("would process %d stream(s)", len(v.Decision.Processed))
		}
		fmt.Printf("  policy %-16s %s\n", v.Policy+":", verdict)
	}
	fmt.Println()

	return nil
}
