package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lowaak/lux-logger/internal/sensor"
)

// RollupStore keeps one row of aggregate stats per calendar day in SQLite.
// The day's aggregate is recomputed in full before every merge, so MergeDay
// replaces the row for its date rather than accumulating into it. The rollup
// outlives snapshot clears: it is a history, not a cache.
type RollupStore struct {
	db     *sql.DB
	logger *log.Logger
}

var _ sensor.RollupSink = (*RollupStore)(nil)

// DayStat is one persisted per-day aggregate
type DayStat struct {
	Date  string `json:"date"`
	Stats sensor.Stats
}

func NewRollupStore(dbPath string, logger *log.Logger) (*RollupStore, error) {
	if logger == nil {
		panic("RollupStore: logger cannot be nil")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Single writer, matching SQLite's own concurrency model
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &RollupStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Printf("RollupStore: initialized at %s", dbPath)
	return store, nil
}

func (s *RollupStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *RollupStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_rollups (
		date TEXT PRIMARY KEY,
		total_exposure REAL NOT NULL,
		avg_intensity REAL NOT NULL,
		max_intensity REAL NOT NULL,
		latest_intensity REAL NOT NULL,
		number_readings INTEGER NOT NULL,
		peak_time INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// MergeDay upserts the aggregate row for the given date ("2006-01-02")
func (s *RollupStore) MergeDay(date string, day sensor.Stats) error {
	query := `
		INSERT INTO daily_rollups
			(date, total_exposure, avg_intensity, max_intensity, latest_intensity, number_readings, peak_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(date) DO UPDATE SET
			total_exposure = excluded.total_exposure,
			avg_intensity = excluded.avg_intensity,
			max_intensity = excluded.max_intensity,
			latest_intensity = excluded.latest_intensity,
			number_readings = excluded.number_readings,
			peak_time = excluded.peak_time,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.Exec(query,
		date,
		day.TotalExposure,
		day.AvgIntensity,
		day.MaxIntensity,
		day.LatestIntensity,
		day.NumberReadings,
		day.PeakTime,
	)
	if err != nil {
		return fmt.Errorf("failed to merge rollup for %s: %w", date, err)
	}
	return nil
}

// Day returns the aggregate stored for a date; found=false when none exists
func (s *RollupStore) Day(date string) (sensor.Stats, bool, error) {
	query := `
		SELECT total_exposure, avg_intensity, max_intensity, latest_intensity, number_readings, peak_time
		FROM daily_rollups
		WHERE date = ?
	`

	var stats sensor.Stats
	err := s.db.QueryRow(query, date).Scan(
		&stats.TotalExposure,
		&stats.AvgIntensity,
		&stats.MaxIntensity,
		&stats.LatestIntensity,
		&stats.NumberReadings,
		&stats.PeakTime,
	)
	if err == sql.ErrNoRows {
		return sensor.Stats{}, false, nil
	}
	if err != nil {
		return sensor.Stats{}, false, fmt.Errorf("failed to query rollup for %s: %w", date, err)
	}
	return stats, true, nil
}

// RecentDays returns up to limit day aggregates, newest first
func (s *RollupStore) RecentDays(limit int) ([]DayStat, error) {
	query := `
		SELECT date, total_exposure, avg_intensity, max_intensity, latest_intensity, number_readings, peak_time
		FROM daily_rollups
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollups: %w", err)
	}
	defer rows.Close()

	var days []DayStat
	for rows.Next() {
		var d DayStat
		err := rows.Scan(
			&d.Date,
			&d.Stats.TotalExposure,
			&d.Stats.AvgIntensity,
			&d.Stats.MaxIntensity,
			&d.Stats.LatestIntensity,
			&d.Stats.NumberReadings,
			&d.Stats.PeakTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rollup: %w", err)
		}
		days = append(days, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return days, nil
}
