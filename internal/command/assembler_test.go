package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamplan/streamplan/internal/mapper"
	"github.com/streamplan/streamplan/internal/probe"
)

func testProbe() *probe.Result {
	return &probe.Result{
		Format: probe.Format{FormatName: "matroska,webm", Duration: "3600.0"},
		Streams: []probe.Stream{
			{Index: 0, CodecName: "h264", CodecType: probe.CodecTypeVideo},
			{Index: 1, CodecName: "aac", CodecType: probe.CodecTypeAudio, Channels: 2},
			{Index: 2, CodecName: "ac3", CodecType: probe.CodecTypeAudio, Channels: 6},
			{Index: 3, CodecName: "subrip", CodecType: probe.CodecTypeSubtitle},
		},
	}
}

func TestAssemble_NoWork(t *testing.T) {
	args := Assemble("in.mkv", "out.mkv", testProbe(), mapper.Decision{})
	assert.Nil(t, args, "no-op decisions must produce an empty command")
}

func TestAssemble_ReencodeOneStream(t *testing.T) {
	d := mapper.Decision{
		NeedsProcessing: true,
		Encoding:        []string{"-c:a:1", "libopus", "-b:a:1", "384k"},
		Processed: []mapper.StreamDecision{
			{
				Index:     2,
				StreamID:  1,
				CodecType: probe.CodecTypeAudio,
				Fragments: mapper.Fragments{
					Mapping:  []string{"-map", "0:a:1"},
					Encoding: []string{"-c:a:1", "libopus", "-b:a:1", "384k"},
				},
			},
		},
	}

	args := Assemble("in.mkv", "out.mkv", testProbe(), d)
	require.NotNil(t, args)

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "info", "-i", "in.mkv",
		"-map", "0:0", // video copied by absolute index
		"-map", "0:1", // untouched audio
		"-map", "0:a:1", // re-encoded audio via its own fragment
		"-map", "0:3", // subtitle copied
		"-c", "copy",
		"-c:a:1", "libopus", "-b:a:1", "384k",
		"-max_muxing_queue_size", "9999", "-y", "out.mkv",
	}, args)
}

func TestAssemble_Removal(t *testing.T) {
	// Audio stream idx 2 removed: processed with empty fragments.
	d := mapper.Decision{
		NeedsProcessing: true,
		Processed: []mapper.StreamDecision{
			{Index: 2, StreamID: 1, CodecType: probe.CodecTypeAudio},
		},
	}

	args := Assemble("in.mkv", "out.mkv", testProbe(), d)
	require.NotNil(t, args)

	// The removed stream appears in no -map argument.
	assert.NotContains(t, args, "0:2")
	assert.NotContains(t, args, "0:a:1")
	assert.Contains(t, args, "0:0")
	assert.Contains(t, args, "0:1")
	assert.Contains(t, args, "0:3")
}

func TestAssemble_AllStreamsOfTypeRemoved(t *testing.T) {
	// Both subtitle and all-but-one audio removed; subtitle type vanishes
	// from the output entirely.
	d := mapper.Decision{
		NeedsProcessing: true,
		Processed: []mapper.StreamDecision{
			{Index: 2, StreamID: 1, CodecType: probe.CodecTypeAudio},
			{Index: 3, StreamID: 0, CodecType: probe.CodecTypeSubtitle},
		},
	}

	args := Assemble("in.mkv", "out.mkv", testProbe(), d)
	require.NotNil(t, args)
	assert.NotContains(t, args, "0:2")
	assert.NotContains(t, args, "0:3")
}

func TestAssemble_EndToEndShape(t *testing.T) {
	// One audio stream, re-encode policy: the full command for the simple
	// single-stream case.
	pr := &probe.Result{
		Format: probe.Format{FormatName: "mov,mp4", Duration: "120.0"},
		Streams: []probe.Stream{
			{Index: 0, CodecName: "aac", CodecType: probe.CodecTypeAudio, Channels: 2},
		},
	}

	m := mapper.New(probe.CodecTypeAudio)
	m.AttachProbe(pr)
	d, err := m.Evaluate(
		func(s probe.Stream, _ mapper.FileContext) (bool, error) { return s.CodecName != "opus", nil },
		func(s probe.Stream, id int) (mapper.Fragments, error) {
			return mapper.Fragments{
				Mapping:  []string{"-map", "0:a:0"},
				Encoding: []string{"-c:a:0", "libopus", "-b:a:0", "128k", "-ac:a:0", "2"},
			}, nil
		},
	)
	require.NoError(t, err)
	require.True(t, d.NeedsProcessing)

	args := Assemble("song.m4a", "song.ogg", pr, d)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "info", "-i", "song.m4a",
		"-map", "0:a:0",
		"-c", "copy",
		"-c:a:0", "libopus", "-b:a:0", "128k", "-ac:a:0", "2",
		"-max_muxing_queue_size", "9999", "-y", "song.ogg",
	}, args)
}
