package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/lowaak/lux-logger/internal/sensor"
)

// Snapshot is the durable form of the whole reading set with its aggregate
type Snapshot struct {
	Readings []sensor.Reading `json:"readings"`
	Stats    sensor.Stats     `json:"stats"`
}

// SnapshotStore persists the full reading set as a single JSON document.
// Every save rewrites the whole file; there is no incremental append, which
// keeps the on-disk form trivially consistent with the in-memory set.
type SnapshotStore struct {
	filePath string
	logger   *log.Logger
}

var _ sensor.SnapshotSink = (*SnapshotStore)(nil)

func NewSnapshotStore(filePath string, logger *log.Logger) *SnapshotStore {
	if logger == nil {
		panic("SnapshotStore: logger cannot be nil")
	}
	return &SnapshotStore{filePath: filePath, logger: logger}
}

// DefaultSnapshotPath is ~/.lux-logger/readings.json
func DefaultSnapshotPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".lux-logger", "readings.json")
}

// Load reads the snapshot. The legacy layout was a bare reading array with
// no stats; it is still accepted, reported with a nil Stats so the caller
// recomputes. Returns ok=false when no usable snapshot exists; a corrupt
// file is logged and treated the same way.
func (s *SnapshotStore) Load() ([]sensor.Reading, *sensor.Stats, bool) {
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("SnapshotStore: read %s failed: %v", s.filePath, err)
		}
		return nil, nil, false
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil, false
	}

	if trimmed[0] == '[' {
		var readings []sensor.Reading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			s.logger.Printf("SnapshotStore: legacy snapshot %s failed to parse: %v", s.filePath, err)
			return nil, nil, false
		}
		s.logger.Printf("SnapshotStore: loaded %d readings from legacy snapshot", len(readings))
		return readings, nil, true
	}

	var snapshot Snapshot
	if err := json.Unmarshal(trimmed, &snapshot); err != nil {
		s.logger.Printf("SnapshotStore: snapshot %s failed to parse: %v", s.filePath, err)
		return nil, nil, false
	}
	s.logger.Printf("SnapshotStore: loaded %d readings", len(snapshot.Readings))
	return snapshot.Readings, &snapshot.Stats, true
}

// Save writes the full snapshot, creating the directory if needed
func (s *SnapshotStore) Save(readings []sensor.Reading, stats sensor.Stats) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	raw, err := json.MarshalIndent(Snapshot{Readings: readings, Stats: stats}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(s.filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", s.filePath, err)
	}
	return nil
}

// Clear deletes the snapshot file; a missing file is not an error
func (s *SnapshotStore) Clear() error {
	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove snapshot %s: %w", s.filePath, err)
	}
	return nil
}
