package policy

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/streamplan/streamplan/internal/mapper"
	"github.com/streamplan/streamplan/internal/probe"
)

// audioEncoderName identifies the audio re-encode policy in logs and
// outcome records.
const audioEncoderName = "audio_encoder"

// fallbackBitrateKbps is used when a stream reports no channel count and no
// explicit bitrate is configured.
const fallbackBitrateKbps = 64

// channelLayouts is the aformat normalization applied to every re-encoded
// stream so exotic source layouts collapse to something every encoder
// accepts.
const channelLayouts = "aformat=channel_layouts='7.1|5.1|stereo|mono'"

// EncodeOptions configures the audio re-encode policy.
type EncodeOptions struct {
	// AcceptableCodec is the codec_name that needs no work. Streams already
	// using it are left alone; everything else is re-encoded.
	AcceptableCodec string

	// Encoder is the encoder library used for conversion, e.g. "libopus".
	Encoder string

	// BitrateKbps is the per-stream target bitrate. 0 means derive it from
	// the channel count (64 kbit/s per channel).
	BitrateKbps int

	// ExtraOptions holds verbatim additional output options, applied only
	// when Advanced is set.
	ExtraOptions string
	Advanced     bool
}

// Validate reports a ConfigurationError when the options cannot drive an
// encode.
func (o EncodeOptions) Validate() error {
	if strings.TrimSpace(o.AcceptableCodec) == "" {
		return &ConfigurationError{Policy: audioEncoderName, Option: "acceptable_codec", Reason: "must not be empty"}
	}
	if strings.TrimSpace(o.Encoder) == "" {
		return &ConfigurationError{Policy: audioEncoderName, Option: "encoder", Reason: "must not be empty"}
	}
	if o.BitrateKbps < 0 {
		return &ConfigurationError{Policy: audioEncoderName, Option: "bitrate", Reason: "must not be negative"}
	}
	return nil
}

// NewAudioEncoder builds the audio re-encode policy: every audio stream not
// already using the acceptable codec is mapped and converted with the
// configured encoder.
func NewAudioEncoder(opts EncodeOptions, logger *slog.Logger) (*Policy, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	pred := func(stream probe.Stream, _ mapper.FileContext) (bool, error) {
		if stream.CodecName == "" {
			logger.Debug("stream has no codec_name, treating as needing conversion",
				slog.Int("index", stream.Index))
			return true, nil
		}
		return !strings.EqualFold(stream.CodecName, opts.AcceptableCodec), nil
	}

	build := func(stream probe.Stream, streamID int) (mapper.Fragments, error) {
		bitrate := opts.BitrateKbps
		if bitrate == 0 {
			bitrate = calculateBitrate(stream, logger)
		}

		encoding := []string{
			fmt.Sprintf("-c:a:%d", streamID), opts.Encoder,
			fmt.Sprintf("-b:a:%d", streamID), fmt.Sprintf("%dk", bitrate),
		}
		if stream.Channels > 0 {
			encoding = append(encoding,
				fmt.Sprintf("-ac:a:%d", streamID), strconv.Itoa(stream.Channels))
		}
		encoding = append(encoding,
			fmt.Sprintf("-filter:a:%d", streamID), channelLayouts)

		if opts.Advanced && opts.ExtraOptions != "" {
			encoding = append(encoding, splitOptions(opts.ExtraOptions)...)
		}

		return mapper.Fragments{
			Mapping:  []string{"-map", fmt.Sprintf("0:a:%d", streamID)},
			Encoding: encoding,
		}, nil
	}

	return &Policy{
		Name:      audioEncoderName,
		Scope:     []probe.CodecType{probe.CodecTypeAudio},
		Predicate: pred,
		Builder:   build,
	}, nil
}

// calculateBitrate derives a target bitrate of 64 kbit/s per channel. A
// stream with no channel count gets the flat fallback and a diagnostic.
func calculateBitrate(stream probe.Stream, logger *slog.Logger) int {
	if stream.Channels <= 0 {
		logger.Debug("stream has no channel count, using fallback bitrate",
			slog.Int("index", stream.Index),
			slog.Int("bitrate_kbps", fallbackBitrateKbps))
		return fallbackBitrateKbps
	}
	return fallbackBitrateKbps * stream.Channels
}
