package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyReadingBatchByHeuristic(t *testing.T) {
	c := ClassifyLine("1000,250", "", 1)

	assert.Equal(t, ClassReadingBatch, c.Class)
	require.Len(t, c.Readings, 1)
	assert.Equal(t, int64(1000), c.Readings[0].DeviceTimestamp)
}

func TestClassifyReadingBatchWhileGetInFlight(t *testing.T) {
	// During a GET even lines that fail the numeric-prefix heuristic are
	// parsed as a batch.
	c := ClassifyLine("-5,0.5", CmdGet, 1)

	assert.Equal(t, ClassReadingBatch, c.Class)
	require.Len(t, c.Readings, 1)
	assert.Equal(t, int64(-5), c.Readings[0].DeviceTimestamp)
}

func TestClassifySentinelLines(t *testing.T) {
	for _, text := range []string{"END", "end", "CLEARED", "ERROR something failed", "log end reached"} {
		c := ClassifyLine(text, "", 1)
		assert.Equal(t, ClassSentinel, c.Class, "text %q", text)
	}
}

func TestClassifyStatusLine(t *testing.T) {
	c := ClassifyLine("booting firmware v2", "", 1)

	assert.Equal(t, ClassStatusLine, c.Class)
	assert.Empty(t, c.Readings)
}

// A parsed batch wins over the sentinel check even when the text also
// contains a sentinel token.
func TestClassifyBatchShadowsSentinel(t *testing.T) {
	c := ClassifyLine("1000,250\nEND", CmdGet, 1)

	assert.Equal(t, ClassReadingBatch, c.Class)
	require.Len(t, c.Readings, 1)
}

// A line that looks numeric but parses to zero readings falls through to the
// remaining rules instead of becoming an empty batch.
func TestClassifyHeuristicMatchWithoutReadings(t *testing.T) {
	c := ClassifyLine("12,34x56", "", 1)
	assert.Equal(t, ClassStatusLine, c.Class)

	c = ClassifyLine("12,34x56 ERROR", "", 1)
	assert.Equal(t, ClassSentinel, c.Class)
}

func TestClassifyDuringGetEmptyFallsThrough(t *testing.T) {
	// GET in flight but nothing parseable: the END sentinel still completes
	c := ClassifyLine("END", CmdGet, 1)
	assert.Equal(t, ClassSentinel, c.Class)
}

func TestClassifyReceivedAtStampsReadings(t *testing.T) {
	c := ClassifyLine("1000,250", "", 424242)

	require.Len(t, c.Readings, 1)
	assert.Equal(t, int64(424242), c.Readings[0].ReceivedAt)
}
