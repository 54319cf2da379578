// Package runner orchestrates probing, policy evaluation, and conversion
// for individual media files.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/streamplan/streamplan/internal/command"
	"github.com/streamplan/streamplan/internal/mapper"
	"github.com/streamplan/streamplan/internal/models"
	"github.com/streamplan/streamplan/internal/observability"
	"github.com/streamplan/streamplan/internal/policy"
	"github.com/streamplan/streamplan/internal/probe"
	"github.com/streamplan/streamplan/internal/progress"
	"github.com/streamplan/streamplan/internal/storage"
)

// FileProber yields stream layouts for media files. *probe.Prober is the
// production implementation.
type FileProber interface {
	Probe(ctx context.Context, path string) (*probe.Result, error)
}

// Verdict is the result of evaluating one policy against one file.
type Verdict struct {
	Policy          string
	NeedsProcessing bool
	Decision        mapper.Decision
}

// TestResult holds the evaluation of every configured policy for a file.
type TestResult struct {
	Path     string
	Probe    *probe.Result
	Verdicts []Verdict
}

// NeedsProcessing reports whether any policy wants to process the file.
func (r *TestResult) NeedsProcessing() bool {
	for _, v := range r.Verdicts {
		if v.NeedsProcessing {
			return true
		}
	}
	return false
}

// First returns the first verdict that needs processing.
func (r *TestResult) First() (Verdict, bool) {
	for _, v := range r.Verdicts {
		if v.NeedsProcessing {
			return v, true
		}
	}
	return Verdict{}, false
}

// ProcessResult describes what happened to a single file.
type ProcessResult struct {
	Path           string
	Status         models.OutcomeStatus
	Policy         string
	Reason         string
	Args           []string
	OutputPath     string
	StreamsChanged int
	Duration       time.Duration
}

// ProcessOptions controls how Process handles a file.
type ProcessOptions struct {
	// DryRun evaluates and assembles but never executes ffmpeg.
	DryRun bool
	// Replace renames the converted output over the source file.
	Replace bool
}

// Options configures a Runner.
type Options struct {
	Prober           FileProber
	Policies         []*policy.Policy
	Store            *storage.OutcomeStore
	Logger           *slog.Logger
	FFmpegPath       string
	WorkDir          string
	MaxCPUPercent    float64
	ProgressInterval time.Duration
}

// Runner evaluates policies against files and drives ffmpeg conversions.
type Runner struct {
	prober           FileProber
	policies         []*policy.Policy
	store            *storage.OutcomeStore
	logger           *slog.Logger
	ffmpegPath       string
	workDir          string
	maxCPUPercent    float64
	progressInterval time.Duration
}

// New creates a Runner. Store may be nil to disable outcome recording.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 10 * time.Second
	}
	return &Runner{
		prober:           opts.Prober,
		policies:         opts.Policies,
		store:            opts.Store,
		logger:           opts.Logger,
		ffmpegPath:       opts.FFmpegPath,
		workDir:          opts.WorkDir,
		maxCPUPercent:    opts.MaxCPUPercent,
		progressInterval: opts.ProgressInterval,
	}
}

// Test probes a file and evaluates every configured policy against it.
// It has no side effects and records nothing.
func (r *Runner) Test(ctx context.Context, path string) (*TestResult, error) {
	pr, err := r.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return r.evaluate(path, pr)
}

// evaluate runs each policy through a fresh mapper against the probe.
func (r *Runner) evaluate(path string, pr *probe.Result) (*TestResult, error) {
	result := &TestResult{Path: path, Probe: pr}

	for _, pol := range r.policies {
		m := mapper.New(pol.Scope...)
		m.SetInput(path)
		m.AttachProbe(pr)

		decision, err := m.Evaluate(pol.Predicate, pol.Builder)
		if err != nil {
			return nil, fmt.Errorf("evaluating policy %s: %w", pol.Name, err)
		}

		result.Verdicts = append(result.Verdicts, Verdict{
			Policy:          pol.Name,
			NeedsProcessing: decision.NeedsProcessing,
			Decision:        decision,
		})

		r.logger.Debug("policy evaluated",
			slog.String("file", filepath.Base(path)),
			slog.String("policy", pol.Name),
			slog.Bool("needs_processing", decision.NeedsProcessing),
		)
	}

	return result, nil
}

// Process runs the full pipeline for one file. Probe and evaluation errors
// do not propagate; they produce a failed result so callers can continue
// with other files. Only infrastructure errors (outcome recording) return.
func (r *Runner) Process(ctx context.Context, path string, opts ProcessOptions) (*ProcessResult, error) {
	start := time.Now()
	log := observability.WithFile(r.logger, filepath.Base(path))

	if !opts.DryRun && r.maxCPUPercent > 0 {
		load, err := snapshotLoad(ctx)
		if err != nil {
			log.Warn("host load snapshot failed", slog.String("error", err.Error()))
		} else if load.CPUPercent > r.maxCPUPercent {
			log.Info("deferring file, host too loaded",
				slog.Float64("cpu_percent", load.CPUPercent),
				slog.Float64("max_cpu_percent", r.maxCPUPercent),
			)
			return r.finish(ctx, &ProcessResult{
				Path:     path,
				Status:   models.OutcomeDeferred,
				Reason:   fmt.Sprintf("host CPU at %.1f%%, limit %.1f%%", load.CPUPercent, r.maxCPUPercent),
				Duration: time.Since(start),
			})
		}
	}

	test, err := r.Test(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		var probeErr *probe.ProbeError
		if errors.As(err, &probeErr) {
			log.Warn("probe failed, skipping file", slog.String("error", err.Error()))
		} else {
			log.Warn("policy evaluation failed, skipping file", slog.String("error", err.Error()))
		}
		return r.finish(ctx, &ProcessResult{
			Path:     path,
			Status:   models.OutcomeFailed,
			Reason:   err.Error(),
			Duration: time.Since(start),
		})
	}

	verdict, ok := test.First()
	if !ok {
		log.Info("no policy requires work")
		return r.finish(ctx, &ProcessResult{
			Path:     path,
			Status:   models.OutcomeSkipped,
			Reason:   "no policy matched",
			Duration: time.Since(start),
		})
	}

	dropped := map[probe.CodecType]int{}
	for _, sd := range verdict.Decision.Processed {
		if sd.Removal() {
			dropped[sd.CodecType]++
		}
	}
	for codecType, n := range dropped {
		log.Info("dropping streams",
			slog.String("codec_type", string(codecType)),
			slog.Int("count", n),
		)
	}

	output := r.outputPath(path)
	args := command.Assemble(path, output, test.Probe, verdict.Decision)

	result := &ProcessResult{
		Path:           path,
		Policy:         verdict.Policy,
		Args:           args,
		OutputPath:     output,
		StreamsChanged: len(verdict.Decision.Processed),
	}

	if opts.DryRun {
		result.Status = models.OutcomeTested
		result.Reason = fmt.Sprintf("policy %s would process %d stream(s)", verdict.Policy, result.StreamsChanged)
		result.Duration = time.Since(start)
		return r.finish(ctx, result)
	}

	if err := r.runFFmpeg(ctx, log, args, test.Probe.DurationSeconds()); err != nil {
		result.Status = models.OutcomeFailed
		result.Reason = err.Error()
		result.Duration = time.Since(start)
		return r.finish(ctx, result)
	}

	if opts.Replace {
		if err := replaceFile(output, path); err != nil {
			result.Status = models.OutcomeFailed
			result.Reason = fmt.Sprintf("replacing source: %v", err)
			result.Duration = time.Since(start)
			return r.finish(ctx, result)
		}
		result.OutputPath = path
	}

	result.Status = models.OutcomeConverted
	result.Reason = fmt.Sprintf("policy %s processed %d stream(s)", verdict.Policy, result.StreamsChanged)
	result.Duration = time.Since(start)

	log.Info("file converted",
		slog.String("policy", verdict.Policy),
		slog.Int("streams_changed", result.StreamsChanged),
		slog.Duration("duration", result.Duration),
	)

	return r.finish(ctx, result)
}

// finish records the outcome when a store is configured.
func (r *Runner) finish(ctx context.Context, result *ProcessResult) (*ProcessResult, error) {
	if r.store == nil {
		return result, nil
	}

	outcome := &models.Outcome{
		Path:           result.Path,
		Policy:         result.Policy,
		Verdict:        result.Policy != "",
		Status:         result.Status,
		Reason:         result.Reason,
		StreamsChanged: result.StreamsChanged,
		Duration:       result.Duration,
	}
	if err := r.store.Record(ctx, outcome); err != nil {
		return result, fmt.Errorf("recording outcome: %w", err)
	}
	return result, nil
}

// outputPath returns where the converted file is written. With a work
// directory configured the output lands there, otherwise it becomes a
// sibling of the source with a streamplan suffix.
func (r *Runner) outputPath(src string) string {
	ext := filepath.Ext(src)
	base := strings.TrimSuffix(filepath.Base(src), ext)
	if r.workDir != "" {
		return filepath.Join(r.workDir, base+ext)
	}
	return filepath.Join(filepath.Dir(src), base+".streamplan"+ext)
}

// runFFmpeg executes the assembled command, streaming stderr through the
// progress parser and logging progress at intervals.
func (r *Runner) runFFmpeg(ctx context.Context, log *slog.Logger, args []string, totalSeconds float64) error {
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("getting stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	parser := progress.NewParser(totalSeconds)
	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanStatusLines)

	var tail []string
	lastLog := time.Now()
	for scanner.Scan() {
		line := scanner.Text()

		// Keep a short tail of output for error reporting.
		tail = append(tail, line)
		if len(tail) > 10 {
			tail = tail[1:]
		}

		update, ok := parser.ParseLine(line)
		if !ok {
			continue
		}
		if time.Since(lastLog) >= r.progressInterval {
			lastLog = time.Now()
			log.Info("conversion progress",
				slog.Float64("percent", update.Percent),
				slog.Int64("frame", update.Frame),
				slog.Float64("fps", update.FPS),
				slog.Float64("speed", update.Speed),
			)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.Join(tail, " | "))
	}
	return nil
}

// scanStatusLines splits on both \n and \r since ffmpeg rewrites its
// status line with carriage returns.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
