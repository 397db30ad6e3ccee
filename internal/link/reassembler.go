package link

import (
	"bytes"
)

// LineBuffer reassembles the chunked notification stream into discrete
// newline-delimited lines. Chunk boundaries carry no meaning: a chunk may
// hold a fragment of a line, several lines, or both. The trailing partial
// line is retained across calls and never dropped.
//
// The buffer is unbounded; if a cap is ever wanted it belongs to the caller,
// not here.
type LineBuffer struct {
	buf bytes.Buffer
}

func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// Feed appends a decoded chunk and returns every complete line now
// available, without the terminating newline.
func (b *LineBuffer) Feed(chunk []byte) []string {
	b.buf.Write(chunk)

	var lines []string
	for {
		data := b.buf.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := string(data[:i])
		b.buf.Next(i + 1)
		lines = append(lines, line)
	}
	return lines
}

// Pending returns the retained partial line
func (b *LineBuffer) Pending() string {
	return b.buf.String()
}
