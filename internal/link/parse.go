package link

import (
	"strconv"
	"strings"

	"github.com/lowaak/lux-logger/internal/sensor"
)

// ParseReadingBatch parses a candidate reading batch. The text is split on
// newlines; each non-empty line is split on the FIRST comma into
// (deviceTimestamp, intensity). A line becomes a Reading only if both fields
// parse as numbers; malformed lines are skipped silently rather than
// aborting the batch. Accepted readings are stamped with receivedAt and kept
// in arrival order.
func ParseReadingBatch(text string, receivedAt int64) []sensor.Reading {
	var readings []sensor.Reading
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			continue
		}

		deviceTimestamp, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			continue
		}
		intensity, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}

		readings = append(readings, sensor.Reading{
			DeviceTimestamp: deviceTimestamp,
			Intensity:       intensity,
			ReceivedAt:      receivedAt,
		})
	}
	return readings
}
