package probe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "VIDEO",
      "width": 1920,
      "height": 1080,
      "disposition": {"default": 1},
      "tags": {"language": "und"}
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "channels": 6,
      "channel_layout": "5.1",
      "sample_rate": "48000",
      "tags": {"LANGUAGE": "eng", "title": "Surround"}
    },
    {
      "index": 2,
      "codec_name": "subrip",
      "codec_type": "subtitle",
      "tags": {"language": "ger"}
    },
    {
      "index": 3,
      "codec_name": "bin_data",
      "codec_type": "data"
    }
  ],
  "format": {
    "filename": "movie.mkv",
    "nb_streams": 4,
    "format_name": "matroska,webm",
    "duration": "5400.250000",
    "size": "4294967296",
    "bit_rate": "6361250"
  }
}`

func TestParseJSON(t *testing.T) {
	result, err := ParseJSON([]byte(sampleJSON))
	require.NoError(t, err)
	require.Len(t, result.Streams, 4)

	assert.Equal(t, "matroska,webm", result.Format.FormatName)
	assert.InDelta(t, 5400.25, result.DurationSeconds(), 0.001)
	assert.Equal(t, 6361250, result.Bitrate())

	// codec_type is normalized to lowercase and classified
	assert.Equal(t, CodecTypeVideo, result.Streams[0].CodecType)
	assert.Equal(t, CodecTypeAudio, result.Streams[1].CodecType)
	assert.Equal(t, CodecTypeSubtitle, result.Streams[2].CodecType)
	assert.Equal(t, CodecTypeOther, result.Streams[3].CodecType)

	assert.Equal(t, 6, result.Streams[1].Channels)
}

func TestParseJSON_Unidentified(t *testing.T) {
	_, err := ParseJSON([]byte(`{}`))
	require.Error(t, err)

	_, err = ParseJSON([]byte(`not json`))
	require.Error(t, err)
}

func TestParseJSON_NoStreams(t *testing.T) {
	// A recognized container with zero streams is valid probe output.
	result, err := ParseJSON([]byte(`{"format": {"format_name": "mp3", "duration": "1.0"}}`))
	require.NoError(t, err)
	assert.Empty(t, result.Streams)
}

func TestTagLookupCaseInsensitive(t *testing.T) {
	result, err := ParseJSON([]byte(sampleJSON))
	require.NoError(t, err)

	audio := result.Streams[1]

	// Key stored as "LANGUAGE", looked up as "language"
	lang, ok := audio.Language()
	require.True(t, ok)
	assert.Equal(t, "eng", lang)

	title, ok := audio.Title()
	require.True(t, ok)
	assert.Equal(t, "Surround", title)

	// Missing tag reports absence, not an empty match
	data := result.Streams[3]
	_, ok = data.Language()
	assert.False(t, ok)
}

func TestCountByType(t *testing.T) {
	result, err := ParseJSON([]byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, 1, result.CountByType(CodecTypeVideo))
	assert.Equal(t, 1, result.CountByType(CodecTypeAudio))
	assert.Equal(t, 1, result.CountByType(CodecTypeSubtitle))
	assert.Equal(t, 1, result.CountByType(CodecTypeOther))
}

func TestParseCodecType(t *testing.T) {
	tests := []struct {
		input    string
		expected CodecType
	}{
		{"video", CodecTypeVideo},
		{"Audio", CodecTypeAudio},
		{"SUBTITLE", CodecTypeSubtitle},
		{"data", CodecTypeOther},
		{"attachment", CodecTypeOther},
		{"", CodecTypeOther},
		{" video ", CodecTypeVideo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseCodecType(tt.input), "input %q", tt.input)
	}
}

func TestProbeError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ProbeError{Path: "/library/file.mkv", Err: cause}

	assert.Contains(t, err.Error(), "/library/file.mkv")
	assert.ErrorIs(t, err, cause)

	var pe *ProbeError
	assert.ErrorAs(t, error(err), &pe)
}
