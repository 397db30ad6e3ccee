package bt

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/lux-logger/internal/safe_map"
	"tinygo.org/x/bluetooth"
)

// ErrHandleInvalidated is returned by characteristic operations after a
// disconnect has torn down the cached handles. Callers treat it as a fast
// failure, not something to retry against the same handle.
var ErrHandleInvalidated = errors.New("connection handle invalidated")

// Device is an attached peripheral. Characteristics are addressed by
// service/characteristic UUID pair; handles are resolved lazily and cached
// until InvalidateHandles.
type Device interface {
	Address() string
	IsConnected() bool
	ResolveCharacteristic(serviceUUID string, characteristicUUID string) error
	WriteWithResponse(serviceUUID string, characteristicUUID string, data []byte) error
	SubscribeNotify(serviceUUID string, characteristicUUID string, onData func(buf []byte)) error
	InvalidateHandles()
	Disconnect() error
}

var _ Device = (*deviceImpl)(nil)

type deviceImpl struct {
	mu      sync.Mutex
	bleMu   sync.Mutex // serializes BLE characteristic operations
	logger  *log.Logger
	address string
	conn    *bluetooth.Device // nil after InvalidateHandles

	serviceByUUID          *safe_map.SafeMap[string, *bluetooth.DeviceService]
	characteristicByUUID   *safe_map.SafeMap[string, *bluetooth.DeviceCharacteristic]
	serviceCharsDiscovered *safe_map.SafeMap[string, bool]
	allServicesDiscovered  bool
}

func newDeviceImpl(logger *log.Logger, address string, conn *bluetooth.Device) *deviceImpl {
	if logger == nil {
		panic("logger must be non nil")
	}
	return &deviceImpl{
		logger:                 logger,
		address:                address,
		conn:                   conn,
		serviceByUUID:          safe_map.NewSafeMap[string, *bluetooth.DeviceService](),
		characteristicByUUID:   safe_map.NewSafeMap[string, *bluetooth.DeviceCharacteristic](),
		serviceCharsDiscovered: safe_map.NewSafeMap[string, bool](),
	}
}

func (d *deviceImpl) Address() string {
	return d.address
}

func (d *deviceImpl) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// InvalidateHandles drops the connection reference and every cached service
// and characteristic handle. Subsequent operations fail with
// ErrHandleInvalidated immediately.
func (d *deviceImpl) InvalidateHandles() {
	d.mu.Lock()
	d.conn = nil
	d.allServicesDiscovered = false
	d.mu.Unlock()

	d.serviceByUUID.Clear()
	d.characteristicByUUID.Clear()
	d.serviceCharsDiscovered.Clear()
	d.logger.Printf("Device %s: handles invalidated", d.address)
}

func (d *deviceImpl) Disconnect() error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

// ResolveCharacteristic discovers (and caches) the characteristic, returning
// an error if the device does not offer it.
func (d *deviceImpl) ResolveCharacteristic(serviceUUIDStr string, characteristicUUIDStr string) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	_, err := d.getDeviceCharacteristic(serviceUUIDStr, characteristicUUIDStr)
	return err
}

func (d *deviceImpl) WriteWithResponse(serviceUUIDStr string, characteristicUUIDStr string, data []byte) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	characteristic, err := d.getDeviceCharacteristic(serviceUUIDStr, characteristicUUIDStr)
	if err != nil {
		return err
	}

	if _, err := characteristic.Write(data); err != nil {
		return fmt.Errorf("failed to write characteristic %s: %w", characteristicUUIDStr, err)
	}
	return nil
}

func (d *deviceImpl) SubscribeNotify(serviceUUIDStr string, characteristicUUIDStr string, onData func(buf []byte)) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	d.logger.Printf("Device %s: subscribing to notifications on %s", d.address, characteristicUUIDStr)

	characteristic, err := d.getDeviceCharacteristic(serviceUUIDStr, characteristicUUIDStr)
	if err != nil {
		return err
	}

	if err := characteristic.EnableNotifications(onData); err != nil {
		return fmt.Errorf("failed to enable notifications on %s: %w", characteristicUUIDStr, err)
	}
	return nil
}

func (d *deviceImpl) getDeviceService(serviceUUIDStr string) (*bluetooth.DeviceService, error) {
	d.mu.Lock()
	conn := d.conn
	discovered := d.allServicesDiscovered
	d.mu.Unlock()

	if conn == nil {
		return nil, ErrHandleInvalidated
	}

	if service, ok := d.serviceByUUID.Load(serviceUUIDStr); ok {
		return service, nil
	}

	// Discover ALL services at once: discovering singular services multiple
	// times can interrupt operation of an earlier used service.
	if !discovered {
		d.logger.Printf("Device %s: discovering all services", d.address)
		deviceServices, err := conn.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("error discovering services: %w", err)
		}
		for i := range deviceServices {
			svc := &deviceServices[i]
			d.serviceByUUID.Store(svc.UUID().String(), svc)
		}
		d.mu.Lock()
		d.allServicesDiscovered = true
		d.mu.Unlock()
	}

	service, ok := d.serviceByUUID.Load(serviceUUIDStr)
	if !ok {
		return nil, fmt.Errorf("service %v not found on device", serviceUUIDStr)
	}
	return service, nil
}

func (d *deviceImpl) getDeviceCharacteristic(serviceUUIDStr string, charUUIDStr string) (*bluetooth.DeviceCharacteristic, error) {
	comboUUIDStr := fmt.Sprintf("%s_%s", serviceUUIDStr, charUUIDStr)

	if characteristic, ok := d.characteristicByUUID.Load(comboUUIDStr); ok {
		// A cached handle is only usable while the connection is live.
		if !d.IsConnected() {
			return nil, ErrHandleInvalidated
		}
		return characteristic, nil
	}

	if charsDone, _ := d.serviceCharsDiscovered.Load(serviceUUIDStr); !charsDone {
		service, err := d.getDeviceService(serviceUUIDStr)
		if err != nil {
			return nil, err
		}

		d.logger.Printf("Device %s: discovering characteristics for service %s", d.address, serviceUUIDStr)
		discoveredCharacteristics, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("could not discover characteristics for service %v: %w", serviceUUIDStr, err)
		}
		for i := range discoveredCharacteristics {
			char := &discoveredCharacteristics[i]
			charKey := fmt.Sprintf("%s_%s", serviceUUIDStr, char.UUID().String())
			d.characteristicByUUID.Store(charKey, char)
		}
		d.serviceCharsDiscovered.Store(serviceUUIDStr, true)
	}

	characteristic, ok := d.characteristicByUUID.Load(comboUUIDStr)
	if !ok {
		return nil, fmt.Errorf("characteristic %v not found in service %v", charUUIDStr, serviceUUIDStr)
	}
	return characteristic, nil
}
