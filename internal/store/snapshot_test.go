package store

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/lowaak/lux-logger/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.New(os.Stderr, "test: ", log.LstdFlags)
}

func newTestSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	return NewSnapshotStore(filepath.Join(t.TempDir(), "readings.json"), newTestLogger())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestSnapshotStore(t)

	readings := []sensor.Reading{
		{DeviceTimestamp: 10, Intensity: 5, ReceivedAt: 100},
		{DeviceTimestamp: 20, Intensity: 7.5, ReceivedAt: 200},
	}
	stats := sensor.ComputeStats(readings)

	require.NoError(t, s.Save(readings, stats))

	loaded, loadedStats, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, readings, loaded)
	require.NotNil(t, loadedStats)
	assert.Equal(t, stats, *loadedStats)
}

func TestSnapshotLoadMissingFile(t *testing.T) {
	s := newTestSnapshotStore(t)

	readings, stats, ok := s.Load()
	assert.False(t, ok)
	assert.Nil(t, readings)
	assert.Nil(t, stats)
}

func TestSnapshotLoadLegacyBareArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readings.json")
	legacy := `[
		{"deviceTimestamp": 10, "intensity": 5, "receivedAt": 100},
		{"deviceTimestamp": 20, "intensity": 7, "receivedAt": 200}
	]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	s := NewSnapshotStore(path, newTestLogger())
	readings, stats, ok := s.Load()

	require.True(t, ok)
	assert.Len(t, readings, 2)
	assert.Nil(t, stats, "legacy snapshots carry no stats; caller recomputes")
}

func TestSnapshotLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewSnapshotStore(path, newTestLogger())
	_, _, ok := s.Load()

	assert.False(t, ok, "corrupt snapshot is skipped, not fatal")
}

func TestSnapshotClear(t *testing.T) {
	s := newTestSnapshotStore(t)

	require.NoError(t, s.Save([]sensor.Reading{{Intensity: 1}}, sensor.Stats{}))
	require.NoError(t, s.Clear())

	_, _, ok := s.Load()
	assert.False(t, ok)

	// Clearing again (file already gone) is fine
	assert.NoError(t, s.Clear())
}

func TestSnapshotSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "readings.json")
	s := NewSnapshotStore(path, newTestLogger())

	require.NoError(t, s.Save([]sensor.Reading{{Intensity: 1, ReceivedAt: 1}}, sensor.Stats{NumberReadings: 1}))

	_, _, ok := s.Load()
	assert.True(t, ok)
}

func TestSnapshotSaveEmptySetRoundTrips(t *testing.T) {
	s := newTestSnapshotStore(t)

	require.NoError(t, s.Save(nil, sensor.Stats{}))

	readings, stats, ok := s.Load()
	require.True(t, ok)
	assert.Empty(t, readings)
	require.NotNil(t, stats)
	assert.Equal(t, sensor.Stats{}, *stats)
}
