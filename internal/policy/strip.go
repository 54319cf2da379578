package policy

import (
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/streamplan/streamplan/internal/mapper"
	"github.com/streamplan/streamplan/internal/probe"
)

// languageStripName identifies the stream removal policy in logs and
// outcome records.
const languageStripName = "language_strip"

// StripOptions configures the language/title stream removal policy. Lists
// are matched case-insensitively; language codes additionally match through
// ISO-639 canonicalization, so "ger" and "deu" both hit a German stream.
type StripOptions struct {
	AudioLanguages    []string
	SubtitleLanguages []string
	TitlePhrases      []string
}

// Validate rejects an all-empty configuration: a strip policy with nothing
// to match would silently do nothing forever.
func (o StripOptions) Validate() error {
	if len(cleanList(o.AudioLanguages)) == 0 &&
		len(cleanList(o.SubtitleLanguages)) == 0 &&
		len(cleanList(o.TitlePhrases)) == 0 {
		return &ConfigurationError{
			Policy: languageStripName,
			Option: "audio_languages/subtitle_languages/title_phrases",
			Reason: "at least one removal list must be configured",
		}
	}
	return nil
}

// NewLanguageStrip builds the stream removal policy: audio and subtitle
// streams whose title contains a configured phrase or whose language tag
// matches a configured code are dropped, except that the file's only audio
// stream is always retained.
func NewLanguageStrip(opts StripOptions, logger *slog.Logger) (*Policy, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	audioLangs := cleanList(opts.AudioLanguages)
	subLangs := cleanList(opts.SubtitleLanguages)
	phrases := cleanList(opts.TitlePhrases)

	pred := func(stream probe.Stream, fc mapper.FileContext) (bool, error) {
		if title, ok := stream.Title(); ok {
			lower := strings.ToLower(title)
			for _, phrase := range phrases {
				if strings.Contains(lower, strings.ToLower(phrase)) {
					logger.Debug("stream title matches removal phrase",
						slog.Int("index", stream.Index),
						slog.String("title", title),
						slog.String("phrase", phrase))
					return true, nil
				}
			}
		}

		lang, ok := stream.Language()
		if !ok {
			logger.Warn("stream has no language tag, leaving it in place",
				slog.Int("index", stream.Index),
				slog.String("codec_type", string(stream.CodecType)))
			return false, nil
		}

		langs := subLangs
		if stream.CodecType == probe.CodecTypeAudio {
			langs = audioLangs
		}

		for _, want := range langs {
			if !languageMatches(lang, want) {
				continue
			}
			// Never strip the last remaining audio track.
			if stream.CodecType == probe.CodecTypeAudio && fc.AudioStreams <= 1 {
				logger.Warn("file has only one audio stream, skipping strip",
					slog.Int("index", stream.Index),
					slog.String("language", lang),
					slog.String("file", fc.InputPath))
				return false, nil
			}
			logger.Debug("stream language matches removal list",
				slog.Int("index", stream.Index),
				slog.String("language", lang))
			return true, nil
		}

		return false, nil
	}

	// Removal is expressed by emitting nothing: a stream the assembler never
	// maps does not reach the output.
	build := func(probe.Stream, int) (mapper.Fragments, error) {
		return mapper.Fragments{}, nil
	}

	return &Policy{
		Name:      languageStripName,
		Scope:     []probe.CodecType{probe.CodecTypeAudio, probe.CodecTypeSubtitle},
		Predicate: pred,
		Builder:   build,
	}, nil
}

// cleanList trims entries and drops empties.
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// languageMatches reports whether a stream's language tag matches a
// configured code. Raw case-insensitive substring match is tried first
// (keeps "eng" matching "en-US"-style composite tags), then both sides are
// canonicalized so bibliographic and terminological ISO-639 variants of the
// same language ("ger", "deu", "de") all match each other.
func languageMatches(streamTag, want string) bool {
	streamTag = strings.ToLower(strings.TrimSpace(streamTag))
	want = strings.ToLower(strings.TrimSpace(want))
	if streamTag == "" || want == "" {
		return false
	}
	if strings.Contains(streamTag, want) {
		return true
	}

	st, err := language.Parse(streamTag)
	if err != nil {
		return false
	}
	wt, err := language.Parse(want)
	if err != nil {
		return false
	}
	sb, sc := st.Base()
	wb, wc := wt.Base()
	return sc > language.No && wc > language.No && sb == wb
}
