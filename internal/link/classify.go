package link

import (
	"regexp"
	"strings"

	"github.com/lowaak/lux-logger/internal/sensor"
)

// LineClass tags what an incoming line turned out to be
type LineClass int

const (
	ClassReadingBatch LineClass = iota
	ClassSentinel
	ClassStatusLine
)

// Classification is the result of running a line through the ordered
// classifier. Readings is populated only for ClassReadingBatch.
type Classification struct {
	Class    LineClass
	Readings []sensor.Reading
}

// readingBatchRe is the shape heuristic for a reading line independent of
// command context. Deliberately loose: it can claim a status line that
// happens to start with "<digits>,<digits>", and that is the documented
// behavior of the protocol, not a bug to fix.
var readingBatchRe = regexp.MustCompile(`^\d+,\d+`)

// sentinelRe matches command-completion lines
var sentinelRe = regexp.MustCompile(`(?i)END|ERROR|CLEARED`)

// ClassifyLine applies the ordered classification rules:
//  1. If a GET is in flight, or the trimmed text looks like a reading line,
//     parse the whole text as a reading batch; one accepted reading makes it
//     a batch and the sentinel check is skipped entirely.
//  2. Otherwise a sentinel substring (END/ERROR/CLEARED, case-insensitive)
//     completes the in-flight command.
//  3. Everything else is a free-text status line.
func ClassifyLine(text string, inFlight string, receivedAt int64) Classification {
	if inFlight == CmdGet || readingBatchRe.MatchString(strings.TrimSpace(text)) {
		readings := ParseReadingBatch(text, receivedAt)
		if len(readings) > 0 {
			return Classification{Class: ClassReadingBatch, Readings: readings}
		}
	}

	if sentinelRe.MatchString(text) {
		return Classification{Class: ClassSentinel}
	}

	return Classification{Class: ClassStatusLine}
}
