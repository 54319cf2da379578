// Package probe runs ffprobe against media containers and normalizes its
// output into an immutable per-file snapshot consumed by the stream mapper.
package probe

import (
	"strconv"
	"strings"
)

// CodecType classifies an elementary stream.
type CodecType string

// Codec type constants. Anything ffprobe reports outside the first three
// (data, attachment, unknown) is classified as CodecTypeOther.
const (
	CodecTypeVideo    CodecType = "video"
	CodecTypeAudio    CodecType = "audio"
	CodecTypeSubtitle CodecType = "subtitle"
	CodecTypeOther    CodecType = "other"
)

// ParseCodecType normalizes a raw ffprobe codec_type value.
func ParseCodecType(s string) CodecType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video":
		return CodecTypeVideo
	case "audio":
		return CodecTypeAudio
	case "subtitle":
		return CodecTypeSubtitle
	default:
		return CodecTypeOther
	}
}

// Specifier returns the ffmpeg stream specifier letter for the codec type
// ("v", "a", "s"), or "" for types without a dedicated specifier.
func (t CodecType) Specifier() string {
	switch t {
	case CodecTypeVideo:
		return "v"
	case CodecTypeAudio:
		return "a"
	case CodecTypeSubtitle:
		return "s"
	default:
		return ""
	}
}

// Result is the fully parsed output of one ffprobe call. It is never
// mutated after parsing; all derived values are computed on demand.
type Result struct {
	Format  Format   `json:"format"`
	Streams []Stream `json:"streams"`
}

// Format holds container-level metadata.
type Format struct {
	Filename       string            `json:"filename"`
	NumStreams     int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

// Stream holds the properties of a single elementary stream.
type Stream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecType     CodecType         `json:"codec_type"`
	Profile       string            `json:"profile,omitempty"`
	Channels      int               `json:"channels,omitempty"`
	ChannelLayout string            `json:"channel_layout,omitempty"`
	SampleRate    string            `json:"sample_rate,omitempty"`
	BitRate       string            `json:"bit_rate,omitempty"`
	Width         int               `json:"width,omitempty"`
	Height        int               `json:"height,omitempty"`
	Disposition   Disposition       `json:"disposition,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Disposition contains stream disposition flags.
type Disposition struct {
	Default     int `json:"default"`
	Forced      int `json:"forced"`
	Comment     int `json:"comment"`
	AttachedPic int `json:"attached_pic"`
}

// DurationSeconds returns the container duration in seconds, or 0 when
// unknown.
func (r *Result) DurationSeconds() float64 {
	if r.Format.Duration == "" {
		return 0
	}
	d, err := strconv.ParseFloat(r.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}

// Bitrate returns the overall container bitrate in bits per second, or 0
// when unknown.
func (r *Result) Bitrate() int {
	if r.Format.BitRate == "" {
		return 0
	}
	br, err := strconv.Atoi(r.Format.BitRate)
	if err != nil {
		return 0
	}
	return br
}

// CountByType returns the number of streams of the given codec type.
func (r *Result) CountByType(t CodecType) int {
	n := 0
	for i := range r.Streams {
		if r.Streams[i].CodecType == t {
			n++
		}
	}
	return n
}


// Tag looks up a stream tag by key, case-insensitively. Tag keys are stored
// verbatim as ffprobe reported them; only the lookup folds case.
func (s *Stream) Tag(key string) (string, bool) {
	if len(s.Tags) == 0 {
		return "", false
	}
	if v, ok := s.Tags[key]; ok {
		return v, true
	}
	for k, v := range s.Tags {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Language returns the stream's language tag, if present.
func (s *Stream) Language() (string, bool) {
	return s.Tag("language")
}

// Title returns the stream's title tag, if present.
func (s *Stream) Title() (string, bool) {
	return s.Tag("title")
}
