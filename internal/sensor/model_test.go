package sensor

import (
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel() *Model {
	return NewModel(log.New(os.Stderr, "test: ", log.LstdFlags))
}

// fakeSnapshotSink records persistence calls
type fakeSnapshotSink struct {
	saves   int
	cleared int
	saveErr error

	lastReadings []Reading
	lastStats    Stats
}

func (s *fakeSnapshotSink) Save(readings []Reading, stats Stats) error {
	s.saves++
	s.lastReadings = readings
	s.lastStats = stats
	return s.saveErr
}

func (s *fakeSnapshotSink) Clear() error {
	s.cleared++
	return nil
}

type fakeRollupSink struct {
	dates []string
	days  []Stats
}

func (s *fakeRollupSink) MergeDay(date string, day Stats) error {
	s.dates = append(s.dates, date)
	s.days = append(s.days, day)
	return nil
}

func TestModelAppendReadingsUpdatesDerivedState(t *testing.T) {
	m := newTestModel()

	m.AppendReadings([]Reading{
		{DeviceTimestamp: 10, Intensity: 5, ReceivedAt: time.Now().UnixMilli()},
		{DeviceTimestamp: 20, Intensity: 7, ReceivedAt: time.Now().UnixMilli()},
	})

	assert.Len(t, m.Readings(), 2)
	assert.Equal(t, 12.0, m.Stats().TotalExposure)
	assert.Equal(t, 2, m.StorageStats().TotalReadings)
	assert.Equal(t, 2, m.TimeRangeStats().ReadingsToday)
}

func TestModelAppendEmptyBatchIsNoop(t *testing.T) {
	m := newTestModel()
	sink := &fakeSnapshotSink{}
	m.SetSnapshotSink(sink)

	m.AppendReadings(nil)
	m.AppendReadings([]Reading{})

	assert.Empty(t, m.Readings())
	assert.Zero(t, sink.saves)
}

func TestModelAppendPersistsSnapshotAndRollup(t *testing.T) {
	m := newTestModel()
	snapshot := &fakeSnapshotSink{}
	rollup := &fakeRollupSink{}
	m.SetSnapshotSink(snapshot)
	m.SetRollupSink(rollup)

	now := time.Date(2025, time.March, 12, 15, 0, 0, 0, time.Local)
	m.SetNowFunc(func() time.Time { return now })

	m.AppendReadings([]Reading{{Intensity: 5, ReceivedAt: now.UnixMilli()}})

	require.Equal(t, 1, snapshot.saves)
	assert.Len(t, snapshot.lastReadings, 1)
	assert.Equal(t, 5.0, snapshot.lastStats.TotalExposure)

	require.Equal(t, []string{"2025-03-12"}, rollup.dates)
	assert.Equal(t, 1, rollup.days[0].NumberReadings)
}

func TestModelPersistFailureDoesNotAbortUpdate(t *testing.T) {
	m := newTestModel()
	sink := &fakeSnapshotSink{saveErr: fmt.Errorf("disk full")}
	m.SetSnapshotSink(sink)

	m.AppendReadings([]Reading{{Intensity: 1, ReceivedAt: 1}})

	assert.Len(t, m.Readings(), 1, "in-memory state survives a failed save")
	assert.Equal(t, 1.0, m.Stats().TotalExposure)
}

func TestModelLoadSnapshotSeedsState(t *testing.T) {
	m := newTestModel()

	readings := []Reading{
		{Intensity: 2, ReceivedAt: 100},
		{Intensity: 4, ReceivedAt: 200},
	}
	m.LoadSnapshot(readings, &Stats{TotalExposure: 99, NumberReadings: 2})

	assert.Len(t, m.Readings(), 2)
	// Persisted stats win over the recompute when present
	assert.Equal(t, 99.0, m.Stats().TotalExposure)
	assert.Equal(t, 2, m.StorageStats().TotalReadings)
}

func TestModelLoadSnapshotWithoutStatsRecomputes(t *testing.T) {
	m := newTestModel()

	m.LoadSnapshot([]Reading{{Intensity: 3, ReceivedAt: 100}}, nil)

	assert.Equal(t, 3.0, m.Stats().TotalExposure)
	assert.Equal(t, 1, m.Stats().NumberReadings)
}

func TestModelClearAll(t *testing.T) {
	m := newTestModel()
	sink := &fakeSnapshotSink{}
	m.SetSnapshotSink(sink)

	m.AppendReadings([]Reading{{Intensity: 5, ReceivedAt: time.Now().UnixMilli()}})
	m.AddStatus(StatusEntry{Timestamp: 1, Text: "hello"})

	m.ClearAll()

	assert.Empty(t, m.Readings())
	assert.Equal(t, Stats{}, m.Stats())
	assert.Equal(t, StorageStats{}, m.StorageStats())
	assert.Equal(t, TimeRangeStats{}, m.TimeRangeStats())
	assert.Empty(t, m.StatusTail(10))
	assert.Equal(t, 1, sink.cleared)
}

func TestModelStatusLogIsBounded(t *testing.T) {
	m := newTestModel()

	for i := 0; i < maxStatusEntries+50; i++ {
		m.AddStatus(StatusEntry{Timestamp: int64(i), Text: "line"})
	}

	tail := m.StatusTail(maxStatusEntries + 100)
	require.Len(t, tail, maxStatusEntries)
	// Oldest entries were dropped
	assert.Equal(t, int64(50), tail[0].Timestamp)
}

func TestModelStatusTail(t *testing.T) {
	m := newTestModel()
	for i := 0; i < 5; i++ {
		m.AddStatus(StatusEntry{Timestamp: int64(i)})
	}

	tail := m.StatusTail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, int64(3), tail[0].Timestamp)
	assert.Equal(t, int64(4), tail[1].Timestamp)

	assert.Empty(t, m.StatusTail(0))
}

func TestModelEventsNotifyListeners(t *testing.T) {
	m := newTestModel()

	readingsCh := make(chan []Reading, 4)
	statsCh := make(chan Stats, 4)
	connCh := make(chan ConnectionInfo, 4)

	defer m.ListenToReadings(readingsCh)()
	defer m.ListenToStats(statsCh)()
	defer m.ListenToConnection(connCh)()

	m.AppendReadings([]Reading{{Intensity: 5, ReceivedAt: 1}})
	m.SetConnection(true, "")

	select {
	case readings := <-readingsCh:
		assert.Len(t, readings, 1)
	case <-time.After(time.Second):
		t.Fatal("no readings event")
	}

	select {
	case stats := <-statsCh:
		assert.Equal(t, 5.0, stats.TotalExposure)
	case <-time.After(time.Second):
		t.Fatal("no stats event")
	}

	select {
	case info := <-connCh:
		assert.True(t, info.Connected)
	case <-time.After(time.Second):
		t.Fatal("no connection event")
	}
}

func TestModelConnectionErrorSurfaced(t *testing.T) {
	m := newTestModel()

	m.SetConnection(false, "scan failed")

	info := m.Connection()
	assert.False(t, info.Connected)
	assert.Equal(t, "scan failed", info.Error)
}
