// Package mapper implements the stream-mapping decision engine. A Mapper
// walks the streams of one probed container, asks a pluggable predicate
// whether each in-scope stream needs processing, and collects the transcoder
// argument fragments produced by a pluggable builder for the streams that do.
//
// A Mapper is single-use: one file, one evaluation, no internal
// synchronization. Evaluate concurrent files with independent instances.
package mapper

import (
	"errors"
	"fmt"

	"github.com/streamplan/streamplan/internal/probe"
)

// ErrAlreadyEvaluated is returned by Evaluate when called a second time on
// the same Mapper. Mappers are not reset; construct a fresh one per file.
var ErrAlreadyEvaluated = errors.New("mapper: already evaluated")

// ErrNoProbe is returned by Evaluate when no probe result was attached.
var ErrNoProbe = errors.New("mapper: no probe result attached")

// FileContext carries file-level facts a predicate may need beyond the
// single stream it is inspecting, such as how many audio streams the file
// has in total (to refuse stripping the last one).
type FileContext struct {
	InputPath       string
	VideoStreams    int
	AudioStreams    int
	SubtitleStreams int
}

// StreamCount returns the total stream count for a codec type.
func (fc FileContext) StreamCount(t probe.CodecType) int {
	switch t {
	case probe.CodecTypeVideo:
		return fc.VideoStreams
	case probe.CodecTypeAudio:
		return fc.AudioStreams
	case probe.CodecTypeSubtitle:
		return fc.SubtitleStreams
	default:
		return 0
	}
}

// Predicate decides whether a single stream needs processing. An error is a
// policy misconfiguration or programmer error and aborts evaluation of the
// whole file; a missing optional field must instead resolve to a defined
// default inside the predicate.
type Predicate func(stream probe.Stream, fc FileContext) (bool, error)

// Builder produces the argument fragments for one stream the predicate
// flagged. streamID is the stream's zero-based index within its own codec
// type, not the absolute container index. Returning empty Fragments marks
// the stream for removal: it will simply never be mapped.
type Builder func(stream probe.Stream, streamID int) (Fragments, error)

// Fragments is one stream's contribution to the transcoder argument list.
type Fragments struct {
	Mapping  []string
	Encoding []string
}

// Empty reports whether the fragments carry no arguments at all, which is
// the removal signal.
func (f Fragments) Empty() bool {
	return len(f.Mapping) == 0 && len(f.Encoding) == 0
}

// StreamDecision records one processed stream for logging and assembly.
type StreamDecision struct {
	Index     int             // absolute container stream index
	StreamID  int             // zero-based index within the codec type
	CodecType probe.CodecType
	Fragments Fragments
}

// Removal reports whether this decision drops the stream.
func (d StreamDecision) Removal() bool {
	return d.Fragments.Empty()
}

// Decision is the aggregate outcome of one evaluation pass.
type Decision struct {
	NeedsProcessing bool
	Mapping         []string
	Encoding        []string
	Processed       []StreamDecision
}

// ProcessedByIndex returns the decision for the given absolute stream
// index, if that stream was processed.
func (d Decision) ProcessedByIndex(index int) (StreamDecision, bool) {
	for _, sd := range d.Processed {
		if sd.Index == index {
			return sd, true
		}
	}
	return StreamDecision{}, false
}

// Mapper evaluates the streams of one file against a predicate/builder
// pair. Configure with New, attach a probe result, evaluate exactly once.
type Mapper struct {
	allowed   map[probe.CodecType]bool
	result    *probe.Result
	input     string
	output    string
	evaluated bool
	decision  Decision
}

// New creates a Mapper that considers only streams of the given codec
// types. Streams of other types are skipped entirely: they are never shown
// to the predicate and never consume a per-type stream id.
func New(allowed ...probe.CodecType) *Mapper {
	m := &Mapper{allowed: make(map[probe.CodecType]bool, len(allowed))}
	for _, t := range allowed {
		m.allowed[t] = true
	}
	return m
}

// AttachProbe stores the probe result the evaluation will walk.
func (m *Mapper) AttachProbe(result *probe.Result) {
	m.result = result
}

// SetInput records the input file path, made available to predicates via
// the file context.
func (m *Mapper) SetInput(path string) {
	m.input = path
}

// SetOutput records the output file path for later command assembly.
func (m *Mapper) SetOutput(path string) {
	m.output = path
}

// Input returns the configured input path.
func (m *Mapper) Input() string { return m.input }

// Output returns the configured output path.
func (m *Mapper) Output() string { return m.output }

// Probe returns the attached probe result.
func (m *Mapper) Probe() *probe.Result { return m.result }

// Evaluate runs the decision pass: for every stream in container order whose
// codec type is in scope, it assigns the per-type stream id, consults the
// predicate, and on a positive verdict appends the builder's fragments.
// Fragment order follows ascending absolute stream index and is never
// reordered.
//
// A second call returns ErrAlreadyEvaluated.
func (m *Mapper) Evaluate(pred Predicate, build Builder) (Decision, error) {
	if m.evaluated {
		return Decision{}, ErrAlreadyEvaluated
	}
	if m.result == nil {
		return Decision{}, ErrNoProbe
	}
	m.evaluated = true

	fc := FileContext{
		InputPath:       m.input,
		VideoStreams:    m.result.CountByType(probe.CodecTypeVideo),
		AudioStreams:    m.result.CountByType(probe.CodecTypeAudio),
		SubtitleStreams: m.result.CountByType(probe.CodecTypeSubtitle),
	}

	counters := make(map[probe.CodecType]int, len(m.allowed))

	for _, stream := range m.result.Streams {
		if !m.allowed[stream.CodecType] {
			continue
		}

		streamID := counters[stream.CodecType]
		counters[stream.CodecType]++

		needed, err := pred(stream, fc)
		if err != nil {
			m.decision = Decision{}
			return Decision{}, fmt.Errorf("predicate on stream %d: %w", stream.Index, err)
		}
		if !needed {
			continue
		}

		frags, err := build(stream, streamID)
		if err != nil {
			m.decision = Decision{}
			return Decision{}, fmt.Errorf("building arguments for stream %d: %w", stream.Index, err)
		}

		m.decision.NeedsProcessing = true
		m.decision.Mapping = append(m.decision.Mapping, frags.Mapping...)
		m.decision.Encoding = append(m.decision.Encoding, frags.Encoding...)
		m.decision.Processed = append(m.decision.Processed, StreamDecision{
			Index:     stream.Index,
			StreamID:  streamID,
			CodecType: stream.CodecType,
			Fragments: frags,
		})
	}

	return m.decision, nil
}

// StreamsNeedProcessing reports the verdict of a completed evaluation
// without re-running it.
func (m *Mapper) StreamsNeedProcessing() bool {
	return m.decision.NeedsProcessing
}
