package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineBufferSingleLine(t *testing.T) {
	b := NewLineBuffer()

	lines := b.Feed([]byte("1000,250\n"))

	assert.Equal(t, []string{"1000,250"}, lines)
	assert.Equal(t, "", b.Pending())
}

func TestLineBufferFragmentedLine(t *testing.T) {
	b := NewLineBuffer()

	assert.Empty(t, b.Feed([]byte("10")))
	assert.Equal(t, "10", b.Pending())

	assert.Empty(t, b.Feed([]byte("00,2")))
	assert.Equal(t, "1000,2", b.Pending())

	lines := b.Feed([]byte("50\n"))
	assert.Equal(t, []string{"1000,250"}, lines)
	assert.Equal(t, "", b.Pending())
}

func TestLineBufferMultipleLinesPerChunk(t *testing.T) {
	b := NewLineBuffer()

	lines := b.Feed([]byte("1000,250\n2000,300\npart"))

	assert.Equal(t, []string{"1000,250", "2000,300"}, lines)
	assert.Equal(t, "part", b.Pending())
}

func TestLineBufferEmptyLines(t *testing.T) {
	b := NewLineBuffer()

	lines := b.Feed([]byte("\n\nEND\n"))

	assert.Equal(t, []string{"", "", "END"}, lines)
}

// Splitting the stream at arbitrary chunk boundaries must always yield the
// same lines as feeding it whole.
func TestLineBufferChunkingInvariance(t *testing.T) {
	stream := "1000,250\n2000,300\nEND\nsome status text\n3000,17\n"

	whole := NewLineBuffer().Feed([]byte(stream))

	for chunkSize := 1; chunkSize <= len(stream); chunkSize++ {
		b := NewLineBuffer()
		var lines []string
		for start := 0; start < len(stream); start += chunkSize {
			end := start + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			lines = append(lines, b.Feed([]byte(stream[start:end]))...)
		}
		assert.Equal(t, whole, lines, "chunk size %d", chunkSize)
		assert.Equal(t, "", b.Pending(), "chunk size %d", chunkSize)
	}
}

// Chunked batch followed by its sentinel, as the firmware actually sends it
func TestLineBufferWithClassifierHarvestFlow(t *testing.T) {
	b := NewLineBuffer()

	var readings int
	var sentinels int
	handle := func(chunk string) {
		for _, line := range b.Feed([]byte(chunk)) {
			c := ClassifyLine(line, CmdGet, 1)
			switch c.Class {
			case ClassReadingBatch:
				readings += len(c.Readings)
			case ClassSentinel:
				sentinels++
			}
		}
	}

	handle("10,5\n20,")
	assert.Equal(t, 1, readings, "first line complete, second still partial")

	handle("7\nEND\n")
	assert.Equal(t, 2, readings)
	assert.Equal(t, 1, sentinels)
	assert.Equal(t, "", b.Pending())
}

func TestLineBufferPartialSurvivesUntilNewline(t *testing.T) {
	b := NewLineBuffer()

	b.Feed([]byte("no newline yet"))
	assert.Equal(t, "no newline yet", b.Pending())

	lines := b.Feed([]byte(" and more\nrest"))
	assert.Equal(t, []string{"no newline yet and more"}, lines)
	assert.Equal(t, "rest", b.Pending())
}
