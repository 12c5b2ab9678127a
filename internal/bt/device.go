package bt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/dojo-trainer/internal/safe_map"
	"tinygo.org/x/bluetooth"
)

var ErrNotConnected = errors.New("device not connected")

type DeviceState int

const (
	Disconnected DeviceState = iota
	Connecting
	Connected
)

func (s DeviceState) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Connecting:
		return "Connecting"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Device is a peripheral seen during a scan. Characteristic operations need a connection.
type Device interface {
	GetAddressString() string
	GetLocalName() string
	GetScanRSSI() (int16, error)
	GetState() DeviceState
	IsConnected() bool
	IsRecentlyScanned() bool
	HasServiceUUID(uuid string) bool
	WaitForConnection(ctx context.Context) error
	EnableNotifications(serviceUUID, characteristicUUID string, callback func(buf []byte)) error
	DisableNotifications(serviceUUID, characteristicUUID string) error
	WriteCharacteristic(serviceUUID, characteristicUUID string, data []byte) error
	WriteCharacteristicWithoutResponse(serviceUUID, characteristicUUID string, data []byte) error
}

type device struct {
	address     bluetooth.Address
	scanTimeout time.Duration
	logger      *log.Logger

	mu           sync.RWMutex
	scanResult   *bluetooth.ScanResult
	scanLastSeen time.Time
	connected    *bluetooth.Device
	state        DeviceState
	serviceUUIDs []string

	// bleMu serializes discovery, notification and write calls on the link
	bleMu                 sync.Mutex
	services              *safe_map.SafeMap[string, *bluetooth.DeviceService]
	characteristics       *safe_map.SafeMap[string, *bluetooth.DeviceCharacteristic]
	allServicesDiscovered bool
}

func newDevice(logger *log.Logger, address bluetooth.Address, scanTimeout time.Duration) *device {
	if logger == nil {
		panic("bt: logger cannot be nil")
	}
	if scanTimeout <= 0 {
		panic("bt: scanTimeout must be > 0")
	}
	return &device{
		address:         address,
		scanTimeout:     scanTimeout,
		logger:          logger,
		scanLastSeen:    time.Unix(0, 0),
		services:        safe_map.NewSafeMap[string, *bluetooth.DeviceService](),
		characteristics: safe_map.NewSafeMap[string, *bluetooth.DeviceCharacteristic](),
	}
}

func (d *device) GetAddressString() string {
	return d.address.String()
}

func (d *device) GetLocalName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.scanResult != nil {
		if name := d.scanResult.LocalName(); name != "" {
			return name
		}
	}
	return "Unknown"
}

func (d *device) GetScanRSSI() (int16, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.scanResult == nil {
		return 0, errors.New("no rssi available")
	}
	return d.scanResult.RSSI, nil
}

func (d *device) GetState() DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *device) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected != nil
}

func (d *device) IsRecentlyScanned() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scanResult != nil && time.Since(d.scanLastSeen) <= d.scanTimeout
}

func (d *device) HasServiceUUID(uuid string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.ContainsFunc(d.serviceUUIDs, func(s string) bool { return strings.EqualFold(s, uuid) })
}

func (d *device) lastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scanLastSeen
}

func (d *device) recordScan(result bluetooth.ScanResult, seen time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scanResult = &result
	d.scanLastSeen = seen
	if d.serviceUUIDs == nil {
		for _, uuid := range result.ServiceUUIDs() {
			d.serviceUUIDs = append(d.serviceUUIDs, uuid.String())
		}
	}
}

func (d *device) setConnected(dev *bluetooth.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = dev
	if dev != nil {
		d.state = Connected
		return
	}
	d.state = Disconnected
	// Handles are invalid after a disconnect
	d.services.Clear()
	d.characteristics.Clear()
	d.allServicesDiscovered = false
}

func (d *device) setState(state DeviceState) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
}

func (d *device) connectedDevice() *bluetooth.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// WaitForConnection polls until the connect handler reported the link or ctx ends
func (d *device) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if d.IsConnected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for connection to %s: %w", d.GetAddressString(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (d *device) EnableNotifications(serviceUUID, characteristicUUID string, callback func(buf []byte)) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	char, err := d.characteristic(serviceUUID, characteristicUUID)
	if err != nil {
		return err
	}
	if err := char.EnableNotifications(callback); err != nil {
		return fmt.Errorf("enable notifications on %s: %w", characteristicUUID, err)
	}
	d.logger.Printf("BTDevice: Notifications enabled for %s", characteristicUUID)
	return nil
}

func (d *device) DisableNotifications(serviceUUID, characteristicUUID string) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	char, err := d.characteristic(serviceUUID, characteristicUUID)
	if err != nil {
		return err
	}
	// a nil callback unsubscribes
	if err := char.EnableNotifications(nil); err != nil {
		return fmt.Errorf("disable notifications on %s: %w", characteristicUUID, err)
	}
	return nil
}

func (d *device) WriteCharacteristic(serviceUUID, characteristicUUID string, data []byte) error {
	return d.write(serviceUUID, characteristicUUID, data, true)
}

func (d *device) WriteCharacteristicWithoutResponse(serviceUUID, characteristicUUID string, data []byte) error {
	return d.write(serviceUUID, characteristicUUID, data, false)
}

func (d *device) write(serviceUUID, characteristicUUID string, data []byte, withResponse bool) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	char, err := d.characteristic(serviceUUID, characteristicUUID)
	if err != nil {
		return err
	}
	if err := writeValue(char, data, withResponse); err != nil {
		return fmt.Errorf("write %s: %w", characteristicUUID, err)
	}
	return nil
}

type commandWriter interface {
	WriteWithoutResponse(p []byte) (int, error)
}

// Only some bluetooth backends (darwin, windows) implement acknowledged writes
type requestWriter interface {
	Write(p []byte) (int, error)
}

// writeValue uses an acknowledged write when asked and supported, otherwise a
// plain command write. BlueZ picks the write type itself.
func writeValue(char commandWriter, data []byte, withResponse bool) error {
	if rw, ok := char.(requestWriter); ok && withResponse {
		_, err := rw.Write(data)
		return err
	}
	_, err := char.WriteWithoutResponse(data)
	return err
}

// characteristic resolves a characteristic, discovering every service and then
// every characteristic of the service once. Discovering a single service again
// interrupts notifications already running on an earlier one. Needs bleMu.
func (d *device) characteristic(serviceUUIDStr, charUUIDStr string) (*bluetooth.DeviceCharacteristic, error) {
	serviceUUID, err := bluetooth.ParseUUID(serviceUUIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", serviceUUIDStr, err)
	}
	charUUID, err := bluetooth.ParseUUID(charUUIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", charUUIDStr, err)
	}
	key := serviceUUID.String() + "_" + charUUID.String()
	if char, ok := d.characteristics.Load(key); ok {
		return char, nil
	}

	conn := d.connectedDevice()
	if conn == nil {
		return nil, fmt.Errorf("%s: %w", d.GetAddressString(), ErrNotConnected)
	}

	if !d.allServicesDiscovered {
		services, err := conn.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("discover services: %w", err)
		}
		for i := range services {
			d.services.Store(services[i].UUID().String(), &services[i])
		}
		d.allServicesDiscovered = true
	}

	service, ok := d.services.Load(serviceUUID.String())
	if !ok {
		return nil, fmt.Errorf("service %s not found on device", serviceUUID)
	}
	chars, err := service.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("discover characteristics of %s: %w", serviceUUID, err)
	}
	for i := range chars {
		d.characteristics.Store(serviceUUID.String()+"_"+chars[i].UUID().String(), &chars[i])
	}

	char, ok := d.characteristics.Load(key)
	if !ok {
		return nil, fmt.Errorf("characteristic %s not found in service %s", charUUID, serviceUUID)
	}
	return char, nil
}
