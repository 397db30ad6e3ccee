package link

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/lux-logger/internal/bt"
	"github.com/lowaak/lux-logger/internal/events"
	"github.com/lowaak/lux-logger/internal/go_func_utils"
)

// MockFirmware simulates the sensor firmware behind a UART link: it buffers
// readings, answers HELLO/GET/CLEAR over the write characteristic, and
// streams responses back through the notify callback in configurable chunk
// sizes. Used by --mock mode and the session tests.
type MockFirmware struct {
	mu         sync.Mutex
	logger     *log.Logger
	address    string
	localName  string
	connected  bool
	buffered   []string // pending "timestamp,intensity" lines
	notifyFunc func(buf []byte)
	chunkSize  int
	silent     bool // swallow commands without responding, for timeout paths

	genCancel chan struct{}
}

// MockFirmwareConfig configures a simulated device
type MockFirmwareConfig struct {
	Address   string
	LocalName string
	ChunkSize int // bytes per notification, 0 means whole response at once
}

func NewMockFirmware(logger *log.Logger, cfg MockFirmwareConfig) *MockFirmware {
	if logger == nil {
		panic("MockFirmware: logger cannot be nil")
	}
	if cfg.Address == "" {
		cfg.Address = "00:11:22:33:44:01"
	}
	if cfg.LocalName == "" {
		cfg.LocalName = DeviceNamePrefix + "-MOCK"
	}
	return &MockFirmware{
		logger:    logger,
		address:   cfg.Address,
		localName: cfg.LocalName,
		chunkSize: cfg.ChunkSize,
	}
}

// QueueReading buffers a reading the next GET will return
func (f *MockFirmware) QueueReading(deviceTimestamp int64, intensity float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buffered = append(f.buffered, fmt.Sprintf("%d,%g", deviceTimestamp, intensity))
}

// BufferedCount returns the number of readings awaiting a GET
func (f *MockFirmware) BufferedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buffered)
}

// SetSilent makes the firmware swallow incoming commands without replying
func (f *MockFirmware) SetSilent(silent bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent = silent
}

// StartGenerating queues a synthetic reading every interval until StopGenerating
func (f *MockFirmware) StartGenerating(interval time.Duration) {
	f.mu.Lock()
	if f.genCancel != nil {
		f.mu.Unlock()
		return
	}
	cancel := make(chan struct{})
	f.genCancel = cancel
	f.mu.Unlock()

	go_func_utils.SafeGo(f.logger, func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		intensity := 120.0
		for {
			select {
			case <-cancel:
				return
			case t := <-ticker.C:
				// Drift the intensity so the dashboard shows movement
				intensity += 7.5
				if intensity > 900 {
					intensity = 80
				}
				f.QueueReading(t.UnixMilli(), intensity)
			}
		}
	})
}

func (f *MockFirmware) StopGenerating() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.genCancel != nil {
		close(f.genCancel)
		f.genCancel = nil
	}
}

// handleCommand executes one newline-terminated command from the host
func (f *MockFirmware) handleCommand(data []byte) {
	command := strings.TrimSpace(string(data))
	f.logger.Printf("MockFirmware [%s]: received %q", f.localName, command)

	f.mu.Lock()
	if f.silent {
		f.mu.Unlock()
		return
	}

	var response string
	switch command {
	case CmdHello:
		response = fmt.Sprintf("%s ready, %d buffered\nEND\n", f.localName, len(f.buffered))
	case CmdGet:
		if len(f.buffered) > 0 {
			response = strings.Join(f.buffered, "\n") + "\nEND\n"
		} else {
			response = "END\n"
		}
	case CmdClear:
		f.buffered = nil
		response = "CLEARED\n"
	default:
		response = fmt.Sprintf("ERROR unknown command %q\n", command)
	}
	notify := f.notifyFunc
	chunkSize := f.chunkSize
	f.mu.Unlock()

	if notify == nil {
		return
	}

	// Responses are delivered asynchronously, like real notifications
	go_func_utils.SafeGo(f.logger, func() {
		payload := []byte(response)
		if chunkSize <= 0 {
			notify(payload)
			return
		}
		for len(payload) > 0 {
			n := chunkSize
			if n > len(payload) {
				n = len(payload)
			}
			notify(payload[:n])
			payload = payload[n:]
		}
	})
}

// --- bt.Peripheral implementation ---

var _ bt.Peripheral = (*MockFirmware)(nil)

func (f *MockFirmware) Address() string {
	return f.address
}

func (f *MockFirmware) LocalName() string {
	return f.localName
}

func (f *MockFirmware) RSSI() int16 {
	return -50
}

func (f *MockFirmware) HasServiceUUID(uuid string) bool {
	return uuid == ServiceUUIDUART
}

// --- bt.Device implementation ---

var _ bt.Device = (*MockFirmware)(nil)

func (f *MockFirmware) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *MockFirmware) ResolveCharacteristic(serviceUUID string, characteristicUUID string) error {
	if serviceUUID != ServiceUUIDUART {
		return fmt.Errorf("service not supported by this device: %s", serviceUUID)
	}
	if characteristicUUID != CharUUIDUARTTX && characteristicUUID != CharUUIDUARTRX {
		return fmt.Errorf("characteristic %s not found in service %s", characteristicUUID, serviceUUID)
	}
	return nil
}

func (f *MockFirmware) WriteWithResponse(serviceUUID string, characteristicUUID string, data []byte) error {
	if err := f.ResolveCharacteristic(serviceUUID, characteristicUUID); err != nil {
		return err
	}
	f.mu.Lock()
	connected := f.connected
	f.mu.Unlock()
	if !connected {
		return bt.ErrHandleInvalidated
	}
	f.handleCommand(data)
	return nil
}

func (f *MockFirmware) SubscribeNotify(serviceUUID string, characteristicUUID string, onData func(buf []byte)) error {
	if err := f.ResolveCharacteristic(serviceUUID, characteristicUUID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyFunc = onData
	f.logger.Printf("MockFirmware [%s]: notifications enabled on %s", f.localName, characteristicUUID)
	return nil
}

func (f *MockFirmware) InvalidateHandles() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.notifyFunc = nil
}

func (f *MockFirmware) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.notifyFunc = nil
	f.mu.Unlock()
	return nil
}

// --- MockManager ---

// MockManager implements bt.ManagerInterface against a set of simulated
// firmwares. Scanning advertises every firmware once; DropConnection lets
// tests and demos force a disconnect to exercise the reconnect path.
type MockManager struct {
	mu              sync.Mutex
	logger          *log.Logger
	firmwares       []*MockFirmware
	scanning        bool
	disconnectEvent *events.CallbackEvent[string]
}

var _ bt.ManagerInterface = (*MockManager)(nil)

func NewMockManager(logger *log.Logger, firmwares ...*MockFirmware) *MockManager {
	if logger == nil {
		panic("MockManager: logger cannot be nil")
	}
	return &MockManager{
		logger:          logger,
		firmwares:       firmwares,
		disconnectEvent: events.NewCallbackEvent[string](false),
	}
}

func (m *MockManager) Enable() error {
	m.logger.Println("MockManager: enabled")
	return nil
}

func (m *MockManager) StartScan(onAdvertisement func(p bt.Peripheral)) error {
	if onAdvertisement == nil {
		panic("MockManager: onAdvertisement cannot be nil")
	}

	m.mu.Lock()
	if m.scanning {
		m.mu.Unlock()
		return fmt.Errorf("scan already in progress")
	}
	m.scanning = true
	firmwares := m.firmwares
	m.mu.Unlock()

	m.logger.Println("MockManager: starting scan")
	go_func_utils.SafeGo(m.logger, func() {
		for _, f := range firmwares {
			m.mu.Lock()
			scanning := m.scanning
			m.mu.Unlock()
			if !scanning {
				return
			}
			onAdvertisement(f)
		}
	})
	return nil
}

func (m *MockManager) StopScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanning = false
	return nil
}

func (m *MockManager) IsScanning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanning
}

func (m *MockManager) Connect(p bt.Peripheral) (bt.Device, error) {
	firmware, ok := p.(*MockFirmware)
	if !ok {
		return nil, fmt.Errorf("peripheral %s was not produced by this manager", p.Address())
	}

	firmware.mu.Lock()
	firmware.connected = true
	firmware.mu.Unlock()

	m.logger.Printf("MockManager: connected to %s (%s)", p.LocalName(), p.Address())
	return firmware, nil
}

func (m *MockManager) ListenToDisconnects(callback func(address string)) func() {
	return m.disconnectEvent.Listen(callback)
}

// DropConnection simulates the stack losing the connection to a device
func (m *MockManager) DropConnection(address string) {
	m.mu.Lock()
	firmwares := m.firmwares
	m.mu.Unlock()

	for _, f := range firmwares {
		if f.Address() == address && f.IsConnected() {
			m.logger.Printf("MockManager: dropping connection to %s", address)
			f.InvalidateHandles()
			m.disconnectEvent.Notify(address)
			return
		}
	}
}

func (m *MockManager) Shutdown() {
	m.logger.Println("MockManager: shutting down")
	if err := m.StopScan(); err != nil {
		m.logger.Printf("MockManager: error stopping scan: %v", err)
	}

	m.mu.Lock()
	firmwares := m.firmwares
	m.mu.Unlock()

	for _, f := range firmwares {
		f.StopGenerating()
		if f.IsConnected() {
			_ = f.Disconnect()
		}
	}
}
