package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/streamplan/streamplan/internal/database"
	"github.com/streamplan/streamplan/internal/models"
	"github.com/streamplan/streamplan/internal/probe"
	"github.com/streamplan/streamplan/internal/runner"
	"github.com/streamplan/streamplan/internal/storage"
)

// mediaExtensions are the container suffixes picked up when walking
// directories. Explicit file arguments bypass this filter.
var mediaExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".m4v":  true,
	".avi":  true,
	".mov":  true,
	".ts":   true,
	".webm": true,
	".wmv":  true,
	".flv":  true,
	".mpg":  true,
	".mpeg": true,
}

var (
	processDryRun   bool
	processReplace  bool
	processNoRecord bool
)

var processCmd = &cobra.Command{
	Use:   "process <file-or-dir>...",
	Short: "Convert media files that policies flag for work",
	Long: `Run the full pipeline for each file: probe, evaluate policies,
assemble the ffmpeg command, and execute it. Directories are walked
recursively for media files.

Outcomes are recorded in the history database unless --no-record is
set. With --dry-run the assembled command is printed instead of
executed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "evaluate and print commands without executing ffmpeg")
	processCmd.Flags().BoolVar(&processReplace, "replace", false, "rename converted output over the source file")
	processCmd.Flags().BoolVar(&processNoRecord, "no-record", false, "skip recording outcomes in the history database")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()
	policies, err := buildPolicies(cfg, logger)
	if err != nil {
		return fmt.Errorf("building policies: %w", err)
	}
	if len(policies) == 0 {
		return fmt.Errorf("no policies enabled")
	}

	var store *storage.OutcomeStore
	if !processNoRecord {
		db, err := database.New(cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrating history database: %w", err)
		}
		store = storage.NewOutcomeStore(db.DB)
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no media files found")
	}

	r := runner.New(runner.Options{
		Prober:           probe.NewProber(cfg.FFmpeg.ProbePath).WithTimeout(cfg.FFmpeg.ProbeTimeout),
		Policies:         policies,
		Store:            store,
		Logger:           logger,
		FFmpegPath:       cfg.FFmpeg.BinaryPath,
		WorkDir:          cfg.Process.WorkDir,
		MaxCPUPercent:    cfg.Process.MaxCPUPercent,
		ProgressInterval: cfg.Process.ProgressInterval,
	})

	// Stop cleanly on SIGINT/SIGTERM; a running ffmpeg is killed via context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runner.ProcessOptions{DryRun: processDryRun, Replace: processReplace}
	counts := map[models.OutcomeStatus]int{}

	for _, path := range files {
		if ctx.Err() != nil {
			logger.Info("interrupted, stopping")
			break
		}

		result, err := r.Process(ctx, path, opts)
		if err != nil {
			return err
		}
		counts[result.Status]++

		if processDryRun && len(result.Args) > 0 {
			fmt.Printf("%s\n  ffmpeg %s\n", path, strings.Join(result.Args, " "))
		}
	}

	logger.Info("run complete",
		slog.Int("files", len(files)),
		slog.Int("converted", counts[models.OutcomeConverted]),
		slog.Int("tested", counts[models.OutcomeTested]),
		slog.Int("skipped", counts[models.OutcomeSkipped]),
		slog.Int("deferred", counts[models.OutcomeDeferred]),
		slog.Int("failed", counts[models.OutcomeFailed]),
	)

	if counts[models.OutcomeFailed] > 0 {
		return fmt.Errorf("%d file(s) failed", counts[models.OutcomeFailed])
	}
	return nil
}

// collectFiles expands file and directory arguments into a flat list of
// media file paths.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("statting %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if mediaExtensions[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return files, nil
}
