package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeStatsEmptySetIsAllZero(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))
	assert.Equal(t, Stats{}, ComputeStats([]Reading{}))
}

func TestComputeStatsAggregates(t *testing.T) {
	readings := []Reading{
		{DeviceTimestamp: 10, Intensity: 1, ReceivedAt: 100},
		{DeviceTimestamp: 20, Intensity: 3, ReceivedAt: 200},
		{DeviceTimestamp: 30, Intensity: 2, ReceivedAt: 300},
	}

	s := ComputeStats(readings)

	assert.Equal(t, 6.0, s.TotalExposure)
	assert.Equal(t, 2.0, s.AvgIntensity)
	assert.Equal(t, 3.0, s.MaxIntensity)
	assert.Equal(t, 2.0, s.LatestIntensity)
	assert.Equal(t, 3, s.NumberReadings)
	assert.Equal(t, int64(200), s.PeakTime)
}

func TestComputeStatsPeakTimeIsFirstMaximum(t *testing.T) {
	readings := []Reading{
		{Intensity: 5, ReceivedAt: 100},
		{Intensity: 5, ReceivedAt: 200},
		{Intensity: 1, ReceivedAt: 300},
	}

	s := ComputeStats(readings)

	assert.Equal(t, 5.0, s.MaxIntensity)
	assert.Equal(t, int64(100), s.PeakTime, "ties keep the earliest peak")
}

func TestComputeStatsAvgInvariant(t *testing.T) {
	readings := []Reading{
		{Intensity: 0.3, ReceivedAt: 1},
		{Intensity: 7.1, ReceivedAt: 2},
		{Intensity: 2.6, ReceivedAt: 3},
		{Intensity: 9.9, ReceivedAt: 4},
	}

	s := ComputeStats(readings)

	assert.InDelta(t, s.TotalExposure/float64(s.NumberReadings), s.AvgIntensity, 1e-12)
}

func TestComputeStatsForDayFiltersByReceivedAt(t *testing.T) {
	now := time.Date(2025, time.March, 12, 15, 0, 0, 0, time.Local)
	dayStart := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.Local).UnixMilli()

	readings := []Reading{
		{Intensity: 1, ReceivedAt: dayStart - 1},             // yesterday
		{Intensity: 2, ReceivedAt: dayStart},                 // first ms of today
		{Intensity: 3, ReceivedAt: dayStart + 12*3600*1000},  // midday
		{Intensity: 4, ReceivedAt: dayStart + 24*3600*1000},  // first ms of tomorrow
	}

	s := ComputeStatsForDay(readings, now)

	assert.Equal(t, 2, s.NumberReadings)
	assert.Equal(t, 5.0, s.TotalExposure)
	assert.Equal(t, 3.0, s.MaxIntensity)
}

func TestComputeStorageStats(t *testing.T) {
	empty := ComputeStorageStats(nil)
	assert.Equal(t, 0, empty.TotalReadings)
	// "null" serializes to 4 bytes
	assert.InDelta(t, 4.0/1024.0, empty.SizeKB, 1e-9)

	readings := []Reading{{DeviceTimestamp: 1, Intensity: 2, ReceivedAt: 3}}
	s := ComputeStorageStats(readings)
	assert.Equal(t, 1, s.TotalReadings)
	assert.Greater(t, s.SizeKB, 0.0)
}

func TestComputeTimeRangeStatsWindows(t *testing.T) {
	// Wednesday 2025-03-12; week window is Mon 2025-03-10 .. Mon 2025-03-17
	now := time.Date(2025, time.March, 12, 15, 0, 0, 0, time.Local)

	at := func(y int, m time.Month, d, h int) int64 {
		return time.Date(y, m, d, h, 0, 0, 0, time.Local).UnixMilli()
	}

	readings := []Reading{
		{Intensity: 1, ReceivedAt: at(2025, time.March, 12, 10)}, // today
		{Intensity: 1, ReceivedAt: at(2025, time.March, 10, 0)},  // Monday, this week
		{Intensity: 1, ReceivedAt: at(2025, time.March, 9, 23)},  // Sunday, last week
		{Intensity: 1, ReceivedAt: at(2025, time.March, 1, 0)},   // this month only
		{Intensity: 1, ReceivedAt: at(2025, time.February, 28, 12)}, // last month
	}

	s := ComputeTimeRangeStats(readings, now)

	assert.Equal(t, 1, s.ReadingsToday)
	assert.Equal(t, 2, s.ReadingsWeek)
	assert.Equal(t, 4, s.ReadingsMonth)
}

// A Sunday belongs to the week that started the previous Monday
func TestComputeTimeRangeStatsSundayWeekAnchor(t *testing.T) {
	// Sunday 2025-03-16
	now := time.Date(2025, time.March, 16, 12, 0, 0, 0, time.Local)

	readings := []Reading{
		{Intensity: 1, ReceivedAt: time.Date(2025, time.March, 10, 8, 0, 0, 0, time.Local).UnixMilli()},  // Monday same week
		{Intensity: 1, ReceivedAt: time.Date(2025, time.March, 9, 8, 0, 0, 0, time.Local).UnixMilli()},   // previous Sunday
		{Intensity: 1, ReceivedAt: time.Date(2025, time.March, 17, 8, 0, 0, 0, time.Local).UnixMilli()},  // next Monday
	}

	s := ComputeTimeRangeStats(readings, now)

	assert.Equal(t, 1, s.ReadingsWeek)
}

func TestComputeTimeRangeStatsEmpty(t *testing.T) {
	assert.Equal(t, TimeRangeStats{}, ComputeTimeRangeStats(nil, time.Now()))
}
