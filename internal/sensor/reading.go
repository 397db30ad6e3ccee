package sensor

// Reading is a single intensity sample harvested from the logger firmware.
// DeviceTimestamp is the firmware's own clock (milliseconds since boot, not
// wall-clock); ReceivedAt is host epoch milliseconds stamped on arrival.
// Readings are immutable once created: the set only appends or is cleared.
type Reading struct {
	DeviceTimestamp int64   `json:"deviceTimestamp"`
	Intensity       float64 `json:"intensity"`
	ReceivedAt      int64   `json:"receivedAt"`
}

// StatusEntry records a free-text line from the device that was neither a
// reading batch nor a completion sentinel. Command is the command that was
// in flight when the line arrived, empty if none.
type StatusEntry struct {
	Timestamp int64  `json:"timestamp"`
	Command   string `json:"command,omitempty"`
	Text      string `json:"text"`
}
