// Package progress converts ffmpeg's live status lines into structured
// progress records with a percent-complete derived from the container
// duration.
//
// A Parser belongs to exactly one transcoding process: it is fed lines as
// they arrive (push model, the caller owns all reading), keeps the last
// update, and is not safe for concurrent use.
package progress

import (
	"regexp"
	"strconv"
	"time"
)

// Stderr line shape:
// frame= 1234 fps= 25 q=-1.0 size=  10240KiB time=00:01:23.45 bitrate= ... speed=1.02x
var (
	frameRe = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe   = regexp.MustCompile(`fps=\s*([\d.]+)`)
	timeRe  = regexp.MustCompile(`time=\s*(\d+):(\d+):(\d+)\.(\d+)`)
	speedRe = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// Update is one progress record.
type Update struct {
	Elapsed time.Duration // transcoded position in the source timeline
	Percent float64       // 0-100, 0 when total duration is unknown
	Frame   int64
	FPS     float64
	Speed   float64
}

// Parser turns status lines into Updates.
type Parser struct {
	totalSeconds float64
	last         Update
	seen         bool
}

// NewParser creates a parser for one transcoding process. totalSeconds is
// the container duration from the probe; 0 (unknown) disables percentage
// computation.
func NewParser(totalSeconds float64) *Parser {
	return &Parser{totalSeconds: totalSeconds}
}

// ParseLine consumes one status line. It returns the update and true when
// the line carried a time= position; any other line, malformed or merely
// informational, returns false and is never an error.
func (p *Parser) ParseLine(line string) (Update, bool) {
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return Update{}, false
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	centis, _ := strconv.Atoi(m[4])

	u := Update{
		Elapsed: time.Duration(hours)*time.Hour +
			time.Duration(minutes)*time.Minute +
			time.Duration(seconds)*time.Second +
			time.Duration(centis)*10*time.Millisecond,
	}

	if p.totalSeconds > 0 {
		u.Percent = u.Elapsed.Seconds() / p.totalSeconds * 100
		if u.Percent > 100 {
			u.Percent = 100
		}
	}

	if fm := frameRe.FindStringSubmatch(line); fm != nil {
		u.Frame, _ = strconv.ParseInt(fm[1], 10, 64)
	}
	if fm := fpsRe.FindStringSubmatch(line); fm != nil {
		u.FPS, _ = strconv.ParseFloat(fm[1], 64)
	}
	if sm := speedRe.FindStringSubmatch(line); sm != nil {
		u.Speed, _ = strconv.ParseFloat(sm[1], 64)
	}

	p.last = u
	p.seen = true
	return u, true
}

// Last returns the most recent update and whether any update was seen yet.
func (p *Parser) Last() (Update, bool) {
	return p.last, p.seen
}
