package sensor

import (
	"log"
	"sync"
	"time"

	"github.com/lowaak/lux-logger/internal/events"
)

const maxStatusEntries = 1000

// ConnectionInfo is the externally visible link status. Error carries the
// most recent connect/scan failure and is empty otherwise.
type ConnectionInfo struct {
	Connected bool
	Error     string
}

// SnapshotSink persists the reading set together with its derived stats.
// Implemented by store.SnapshotStore; failures are logged by the caller and
// never abort the in-memory update.
type SnapshotSink interface {
	Save(readings []Reading, stats Stats) error
	Clear() error
}

// RollupSink records per-calendar-day aggregates keyed by date ("2006-01-02")
type RollupSink interface {
	MergeDay(date string, day Stats) error
}

// Model owns the reading set and everything derived from it. It is the only
// writer; all other components observe it through Listen* events or the
// snapshot getters. Derived stats are recomputed in full on every change.
type Model struct {
	mu             sync.RWMutex
	readings       []Reading
	statusEntries  []StatusEntry
	stats          Stats
	storageStats   StorageStats
	timeRangeStats TimeRangeStats
	connection     ConnectionInfo

	nowFunc      func() time.Time
	snapshotSink SnapshotSink
	rollupSink   RollupSink

	readingsEvent       *events.ChannelEvent[[]Reading]
	statsEvent          *events.ChannelEvent[Stats]
	storageStatsEvent   *events.ChannelEvent[StorageStats]
	timeRangeStatsEvent *events.ChannelEvent[TimeRangeStats]
	connectionEvent     *events.ChannelEvent[ConnectionInfo]
	statusEvent         *events.ChannelEvent[StatusEntry]

	logger *log.Logger
}

func NewModel(logger *log.Logger) *Model {
	if logger == nil {
		panic("Model: logger cannot be nil")
	}
	return &Model{
		nowFunc:             time.Now,
		readingsEvent:       events.NewChannelEvent[[]Reading](true),
		statsEvent:          events.NewChannelEvent[Stats](true),
		storageStatsEvent:   events.NewChannelEvent[StorageStats](true),
		timeRangeStatsEvent: events.NewChannelEvent[TimeRangeStats](true),
		connectionEvent:     events.NewChannelEvent[ConnectionInfo](true),
		statusEvent:         events.NewChannelEvent[StatusEntry](false),
		logger:              logger,
	}
}

// SetSnapshotSink attaches the persistence store written on every change
func (m *Model) SetSnapshotSink(sink SnapshotSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotSink = sink
}

// SetRollupSink attaches the daily rollup store
func (m *Model) SetRollupSink(sink RollupSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollupSink = sink
}

// SetNowFunc overrides the clock, for tests
func (m *Model) SetNowFunc(nowFunc func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nowFunc = nowFunc
}

// AppendReadings adds a parsed batch in arrival order, recomputes every
// derived aggregate, persists the new snapshot, and notifies listeners.
func (m *Model) AppendReadings(batch []Reading) {
	if len(batch) == 0 {
		return
	}

	m.mu.Lock()
	m.readings = append(m.readings, batch...)
	now := m.nowFunc()
	m.recomputeLocked(now)
	readingsCopy := m.readingsCopyLocked()
	stats := m.stats
	storageStats := m.storageStats
	timeRangeStats := m.timeRangeStats
	snapshotSink := m.snapshotSink
	rollupSink := m.rollupSink
	m.mu.Unlock()

	m.persist(snapshotSink, rollupSink, readingsCopy, stats, now)

	m.readingsEvent.Notify(readingsCopy)
	m.statsEvent.Notify(stats)
	m.storageStatsEvent.Notify(storageStats)
	m.timeRangeStatsEvent.Notify(timeRangeStats)
}

// LoadSnapshot seeds the model from a persisted snapshot at startup.
// stats may be nil (legacy readings-only snapshot); derived values are then
// recomputed from the readings alone.
func (m *Model) LoadSnapshot(readings []Reading, stats *Stats) {
	m.mu.Lock()
	m.readings = append([]Reading(nil), readings...)
	now := m.nowFunc()
	m.recomputeLocked(now)
	if stats != nil {
		m.stats = *stats
	}
	readingsCopy := m.readingsCopyLocked()
	statsCopy := m.stats
	storageStats := m.storageStats
	timeRangeStats := m.timeRangeStats
	m.mu.Unlock()

	m.logger.Printf("Model: loaded %d readings from snapshot", len(readingsCopy))

	m.readingsEvent.Notify(readingsCopy)
	m.statsEvent.Notify(statsCopy)
	m.storageStatsEvent.Notify(storageStats)
	m.timeRangeStatsEvent.Notify(timeRangeStats)
}

// ClearAll atomically empties the reading set and status log, zeroes every
// derived aggregate, and deletes the persisted snapshot.
func (m *Model) ClearAll() {
	m.mu.Lock()
	m.readings = nil
	m.statusEntries = nil
	m.stats = Stats{}
	m.storageStats = StorageStats{}
	m.timeRangeStats = TimeRangeStats{}
	snapshotSink := m.snapshotSink
	m.mu.Unlock()

	if snapshotSink != nil {
		if err := snapshotSink.Clear(); err != nil {
			m.logger.Printf("Model: snapshot clear failed: %v", err)
		}
	}

	m.logger.Printf("Model: all data cleared")

	m.readingsEvent.Notify(nil)
	m.statsEvent.Notify(Stats{})
	m.storageStatsEvent.Notify(StorageStats{})
	m.timeRangeStatsEvent.Notify(TimeRangeStats{})
}

// AddStatus appends a diagnostic line, keeping only the most recent entries
func (m *Model) AddStatus(entry StatusEntry) {
	m.mu.Lock()
	m.statusEntries = append(m.statusEntries, entry)
	if len(m.statusEntries) > maxStatusEntries {
		m.statusEntries = m.statusEntries[len(m.statusEntries)-maxStatusEntries:]
	}
	m.mu.Unlock()

	m.statusEvent.Notify(entry)
}

// SetConnection publishes the link status; errText is the surfaced error for
// a failed connect/scan attempt, empty when the transition was clean.
func (m *Model) SetConnection(connected bool, errText string) {
	m.mu.Lock()
	m.connection = ConnectionInfo{Connected: connected, Error: errText}
	info := m.connection
	m.mu.Unlock()

	m.connectionEvent.Notify(info)
}

// Must be called with mu held
func (m *Model) recomputeLocked(now time.Time) {
	m.stats = ComputeStats(m.readings)
	m.storageStats = ComputeStorageStats(m.readings)
	m.timeRangeStats = ComputeTimeRangeStats(m.readings, now)
}

// Must be called with mu held
func (m *Model) readingsCopyLocked() []Reading {
	return append([]Reading(nil), m.readings...)
}

func (m *Model) persist(snapshotSink SnapshotSink, rollupSink RollupSink, readings []Reading, stats Stats, now time.Time) {
	if snapshotSink != nil {
		if err := snapshotSink.Save(readings, stats); err != nil {
			m.logger.Printf("Model: snapshot save failed: %v", err)
		}
	}
	if rollupSink != nil {
		day := ComputeStatsForDay(readings, now)
		if err := rollupSink.MergeDay(now.Format("2006-01-02"), day); err != nil {
			m.logger.Printf("Model: rollup merge failed: %v", err)
		}
	}
}

// --- Getters ---

func (m *Model) Readings() []Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readingsCopyLocked()
}

func (m *Model) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *Model) StorageStats() StorageStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.storageStats
}

func (m *Model) TimeRangeStats() TimeRangeStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeRangeStats
}

func (m *Model) Connection() ConnectionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connection
}

// StatusTail returns the last n status entries
func (m *Model) StatusTail(n int) []StatusEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 {
		return []StatusEntry{}
	}
	if n > len(m.statusEntries) {
		n = len(m.statusEntries)
	}
	result := make([]StatusEntry, n)
	copy(result, m.statusEntries[len(m.statusEntries)-n:])
	return result
}

// --- Listen methods (each returns a deregistration function) ---

func (m *Model) ListenToReadings(ch chan<- []Reading) func() {
	return m.readingsEvent.Listen(ch)
}

func (m *Model) ListenToStats(ch chan<- Stats) func() {
	return m.statsEvent.Listen(ch)
}

func (m *Model) ListenToStorageStats(ch chan<- StorageStats) func() {
	return m.storageStatsEvent.Listen(ch)
}

func (m *Model) ListenToTimeRangeStats(ch chan<- TimeRangeStats) func() {
	return m.timeRangeStatsEvent.Listen(ch)
}

func (m *Model) ListenToConnection(ch chan<- ConnectionInfo) func() {
	return m.connectionEvent.Listen(ch)
}

func (m *Model) ListenToStatus(ch chan<- StatusEntry) func() {
	return m.statusEvent.Listen(ch)
}
