package sensor

import (
	"encoding/json"
	"time"
)

const dayMillis = 24 * 60 * 60 * 1000

// Stats is the lifetime aggregate over the reading set. Fully derived:
// recomputed from the set on every change, never independently mutated.
// All fields are zero when the set is empty.
type Stats struct {
	TotalExposure   float64 `json:"totalExposure"`
	AvgIntensity    float64 `json:"avgIntensity"`
	MaxIntensity    float64 `json:"maxIntensity"`
	LatestIntensity float64 `json:"latestIntensity"`
	NumberReadings  int     `json:"numberReadings"`
	PeakTime        int64   `json:"peakTime"`
}

// StorageStats describes how big the retained reading set is on disk.
type StorageStats struct {
	SizeKB        float64 `json:"sizeKB"`
	TotalReadings int     `json:"totalReadings"`
}

// TimeRangeStats counts readings received in the current local day, week
// (Monday-anchored), and month. All windows are half-open over ReceivedAt.
type TimeRangeStats struct {
	ReadingsToday int `json:"readingsToday"`
	ReadingsWeek  int `json:"readingsWeek"`
	ReadingsMonth int `json:"readingsMonth"`
}

// ComputeStats derives the lifetime aggregate from the full reading set.
// LatestIntensity is the most recently appended reading; PeakTime is the
// ReceivedAt of the first reading holding the maximum intensity.
func ComputeStats(readings []Reading) Stats {
	if len(readings) == 0 {
		return Stats{}
	}

	s := Stats{
		NumberReadings: len(readings),
		MaxIntensity:   readings[0].Intensity,
		PeakTime:       readings[0].ReceivedAt,
	}
	for _, r := range readings {
		s.TotalExposure += r.Intensity
		if r.Intensity > s.MaxIntensity {
			s.MaxIntensity = r.Intensity
			s.PeakTime = r.ReceivedAt
		}
	}
	s.AvgIntensity = s.TotalExposure / float64(s.NumberReadings)
	s.LatestIntensity = readings[len(readings)-1].Intensity
	return s
}

// ComputeStatsForDay derives the same aggregate restricted to readings
// received during the local day containing now. This is the alternate
// same-day policy; the application's primary Stats stay lifetime-scoped.
func ComputeStatsForDay(readings []Reading, now time.Time) Stats {
	start, end := dayWindow(now)
	filtered := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if r.ReceivedAt >= start && r.ReceivedAt < end {
			filtered = append(filtered, r)
		}
	}
	return ComputeStats(filtered)
}

// ComputeStorageStats reports the canonical serialized size of the set.
// Recomputed from the true current set each time; an estimate would drift.
func ComputeStorageStats(readings []Reading) StorageStats {
	stats := StorageStats{TotalReadings: len(readings)}
	raw, err := json.Marshal(readings)
	if err != nil {
		// Readings are plain numbers; marshal cannot realistically fail.
		return stats
	}
	stats.SizeKB = float64(len(raw)) / 1024.0
	return stats
}

// ComputeTimeRangeStats counts readings in the day/week/month windows
// containing now.
func ComputeTimeRangeStats(readings []Reading, now time.Time) TimeRangeStats {
	dayStart, dayEnd := dayWindow(now)
	weekStart, weekEnd := weekWindow(now)
	monthStart, monthEnd := monthWindow(now)

	var stats TimeRangeStats
	for _, r := range readings {
		if r.ReceivedAt >= dayStart && r.ReceivedAt < dayEnd {
			stats.ReadingsToday++
		}
		if r.ReceivedAt >= weekStart && r.ReceivedAt < weekEnd {
			stats.ReadingsWeek++
		}
		if r.ReceivedAt >= monthStart && r.ReceivedAt < monthEnd {
			stats.ReadingsMonth++
		}
	}
	return stats
}

func startOfLocalDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dayWindow is [startOfLocalDay(now), startOfLocalDay(now)+24h) in epoch ms
func dayWindow(now time.Time) (int64, int64) {
	start := startOfLocalDay(now).UnixMilli()
	return start, start + dayMillis
}

// weekWindow is Monday-anchored: weekday 0 (Sunday) belongs to the week that
// started six days earlier.
func weekWindow(now time.Time) (int64, int64) {
	weekday := int(now.Weekday())
	mondayOffset := 1 - weekday
	if weekday == 0 {
		mondayOffset = -6
	}
	start := startOfLocalDay(now.AddDate(0, 0, mondayOffset)).UnixMilli()
	return start, start + 7*dayMillis
}

func monthWindow(now time.Time) (int64, int64) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)
	return start.UnixMilli(), end.UnixMilli()
}
