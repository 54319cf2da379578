// Package command assembles the final transcoder argument list from a
// mapper decision.
//
// Precondition, stated here once rather than re-derived per policy: the
// transcoder copies only explicitly mapped content. Every stream the mapper
// left alone is mapped for copy by the assembler; a processed stream with
// empty fragments is never mapped and therefore dropped. When every stream
// of a codec type is removed the output simply carries no track of that
// type.
package command

import (
	"strconv"

	"github.com/streamplan/streamplan/internal/mapper"
	"github.com/streamplan/streamplan/internal/probe"
)

// muxQueueSize bounds the muxer packet queue; remuxing long GOPs with many
// streams overflows the ffmpeg default.
const muxQueueSize = "9999"

// Assemble produces the complete ordered ffmpeg argument list for one file,
// or nil when the decision requires no work. Callers must treat nil as
// "do not invoke the transcoder at all".
//
// Layout: global flags, input, one mapping per surviving stream in
// container order, the catch-all copy default, per-stream encoding
// fragments, muxing and output flags.
func Assemble(input, output string, pr *probe.Result, d mapper.Decision) []string {
	if !d.NeedsProcessing {
		return nil
	}

	args := []string{"-hide_banner", "-loglevel", "info", "-i", input}

	for _, stream := range pr.Streams {
		if sd, ok := d.ProcessedByIndex(stream.Index); ok {
			// Removal fragments are empty: the stream is never mapped.
			args = append(args, sd.Fragments.Mapping...)
			continue
		}
		args = append(args, "-map", "0:"+strconv.Itoa(stream.Index))
	}

	args = append(args, "-c", "copy")
	args = append(args, d.Encoding...)
	args = append(args, "-max_muxing_queue_size", muxQueueSize, "-y", output)

	return args
}
