package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// ProbeError indicates that a file could not be probed: unreadable,
// unrecognized container, or ffprobe itself failing. Callers skip the file
// and record the reason; a ProbeError never aborts a batch.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing %q: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Prober runs ffprobe against local files.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a prober using the given ffprobe binary path.
// An empty path resolves "ffprobe" from PATH.
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Probe probes a file and returns the normalized result.
func (p *Prober) Probe(ctx context.Context, path string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ProbeError{Path: path, Err: fmt.Errorf("timeout after %v", p.timeout)}
		}
		return nil, &ProbeError{Path: path, Err: err}
	}

	result, err := ParseJSON(output)
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}
	return result, nil
}

// ParseJSON converts raw ffprobe JSON output into a normalized Result.
// Exported so tests can run without a real ffprobe binary.
//
// Normalization: codec_type is lowercased and classified into
// video/audio/subtitle/other. A payload with no recognizable format section
// is an error; a valid format with zero streams is not.
func ParseJSON(data []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	if result.Format.FormatName == "" && len(result.Streams) == 0 {
		return nil, fmt.Errorf("ffprobe did not identify the container")
	}

	for i := range result.Streams {
		result.Streams[i].CodecType = ParseCodecType(string(result.Streams[i].CodecType))
	}

	return &result, nil
}
