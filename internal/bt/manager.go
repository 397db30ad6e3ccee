package bt

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/lux-logger/internal/events"
	"github.com/lowaak/lux-logger/internal/go_func_utils"

	"tinygo.org/x/bluetooth"
)

// ManagerInterface is the transport capability consumed by the link layer.
// It deliberately exposes only what the connection lifecycle needs: advertise
// stream in, attach/detach, and disconnect events out.
type ManagerInterface interface {
	Enable() error
	StartScan(onAdvertisement func(Peripheral)) error
	StopScan() error
	IsScanning() bool
	Connect(p Peripheral) (Device, error)
	ListenToDisconnects(callback func(address string)) func()
	Shutdown()
}

// Peripheral is a device seen during scanning, before any connection exists
type Peripheral interface {
	Address() string
	LocalName() string
	RSSI() int16
	HasServiceUUID(uuid string) bool
}

// Verify Manager implements ManagerInterface
var _ ManagerInterface = (*Manager)(nil)

type Manager struct {
	adapter         *bluetooth.Adapter
	mu              sync.Mutex
	scanning        bool
	disconnectEvent *events.CallbackEvent[string]
	connectedByAddr map[string]*deviceImpl
	logger          *log.Logger
}

func NewManager(adapter *bluetooth.Adapter, logger *log.Logger) *Manager {
	if logger == nil {
		panic("Manager: logger cannot be nil")
	}
	return &Manager{
		adapter:         adapter,
		disconnectEvent: events.NewCallbackEvent[string](false),
		connectedByAddr: make(map[string]*deviceImpl),
		logger:          logger,
	}
}

// Enable powers up the adapter and installs the connect handler that turns
// stack-level disconnects into ListenToDisconnects callbacks.
func (m *Manager) Enable() error {
	m.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		addressStr := device.Address.String()
		if connected {
			m.logger.Printf("Manager: device connected: %s", addressStr)
			return
		}

		m.logger.Printf("Manager: device disconnected: %s", addressStr)
		m.mu.Lock()
		d := m.connectedByAddr[addressStr]
		delete(m.connectedByAddr, addressStr)
		m.mu.Unlock()

		// Invalidate before notifying so in-flight writes fail fast
		// rather than targeting a dead handle.
		if d != nil {
			d.InvalidateHandles()
		}
		m.disconnectEvent.Notify(addressStr)
	})

	return m.adapter.Enable()
}

// StartScan begins scanning and delivers every advertisement to the callback.
// Filtering and match-once semantics belong to the caller; advertisements may
// still arrive for a short while after StopScan.
func (m *Manager) StartScan(onAdvertisement func(Peripheral)) error {
	if onAdvertisement == nil {
		panic("Manager: onAdvertisement cannot be nil")
	}

	m.mu.Lock()
	if m.scanning {
		m.mu.Unlock()
		return errors.New("scan already in progress")
	}
	m.scanning = true
	m.mu.Unlock()

	m.logger.Printf("Manager: starting scan")

	go_func_utils.SafeGo(m.logger, func() {
		// adapter.Scan blocks until StopScan
		err := m.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			onAdvertisement(&peripheralImpl{result: result})
		})
		if err != nil {
			m.logger.Printf("Manager: scan error: %v", err)
			m.mu.Lock()
			m.scanning = false
			m.mu.Unlock()
		}
	})

	return nil
}

func (m *Manager) StopScan() error {
	m.mu.Lock()
	wasScanning := m.scanning
	m.scanning = false
	m.mu.Unlock()
	if !wasScanning {
		return nil
	}
	return m.adapter.StopScan()
}

func (m *Manager) IsScanning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanning
}

// Connect attaches to a scanned peripheral and returns a Device whose
// characteristics can then be resolved. Connection loss is reported through
// ListenToDisconnects.
func (m *Manager) Connect(p Peripheral) (Device, error) {
	impl, ok := p.(*peripheralImpl)
	if !ok {
		return nil, fmt.Errorf("peripheral %s was not produced by this manager", p.Address())
	}

	addressStr := p.Address()
	m.logger.Printf("Manager: connecting to %s (%s)", p.LocalName(), addressStr)

	conn, err := m.adapter.Connect(impl.result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addressStr, err)
	}

	d := newDeviceImpl(m.logger, addressStr, &conn)
	m.mu.Lock()
	m.connectedByAddr[addressStr] = d
	m.mu.Unlock()

	return d, nil
}

// ListenToDisconnects registers a callback invoked with the address of every
// device the stack reports as disconnected.
// Returns a deregistration function.
func (m *Manager) ListenToDisconnects(callback func(address string)) func() {
	return m.disconnectEvent.Listen(callback)
}

func (m *Manager) Shutdown() {
	m.logger.Println("Manager: shutting down")
	if err := m.StopScan(); err != nil {
		m.logger.Printf("Manager: error stopping scan: %v", err)
	}

	m.mu.Lock()
	devices := make([]*deviceImpl, 0, len(m.connectedByAddr))
	for _, d := range m.connectedByAddr {
		devices = append(devices, d)
	}
	m.connectedByAddr = make(map[string]*deviceImpl)
	m.mu.Unlock()

	for _, d := range devices {
		if err := d.Disconnect(); err != nil {
			m.logger.Printf("Manager: error disconnecting %s: %v", d.Address(), err)
		}
	}
	m.logger.Println("Manager: shutdown complete")
}

// peripheralImpl wraps a scan result
type peripheralImpl struct {
	result bluetooth.ScanResult
}

func (p *peripheralImpl) Address() string {
	return p.result.Address.String()
}

func (p *peripheralImpl) LocalName() string {
	name := p.result.LocalName()
	if name == "" {
		return "Unknown"
	}
	return name
}

func (p *peripheralImpl) RSSI() int16 {
	return p.result.RSSI
}

func (p *peripheralImpl) HasServiceUUID(uuid string) bool {
	for _, u := range p.result.ServiceUUIDs() {
		if u.String() == uuid {
			return true
		}
	}
	return false
}
