package link

import "time"

// Nordic UART Service UUIDs used by the logger firmware. TX is the
// device-to-host notify characteristic; RX is the host-to-device write
// characteristic.
const (
	ServiceUUIDUART = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	CharUUIDUARTTX  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
	CharUUIDUARTRX  = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
)

// DeviceNamePrefix matches loggers that advertise a name instead of the
// UART service UUID
const DeviceNamePrefix = "LUX"

// Commands understood by the firmware. Anything else is permitted on the
// wire and simply falls through to status logging on reply.
const (
	CmdHello = "HELLO" // handshake after connect
	CmdGet   = "GET"   // request buffered readings
	CmdClear = "CLEAR" // request remote log truncation
)

const (
	// CLEAR truncates a small flash region and answers quickly; everything
	// else may stream an arbitrary backlog first.
	DefaultClearTimeout   = 2000 * time.Millisecond
	DefaultCommandTimeout = 6000 * time.Millisecond

	// Poll and recovery cadence
	DefaultPollInterval   = 7000 * time.Millisecond
	DefaultReconnectDelay = 4000 * time.Millisecond
)
