// Package bt wraps tinygo.org/x/bluetooth with scanning, connection tracking
// and cached characteristic access.
package bt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/dojo-trainer/internal/events"
	"github.com/lowaak/dojo-trainer/internal/go_func_utils"
	"tinygo.org/x/bluetooth"
)

// Central is the part of a BLE central the wrist handler and UI model use
type Central interface {
	Enable() error
	GetDeviceByAddress(address string) Device
	StartScan(serviceUUIDFilter []string)
	StopScan() error
	IsScanning() bool
	Connect(device Device) error
	Disconnect(device Device) error
	GetConnectedDevices() []Device
	GetScanDevices() []Device
	ListenToDeviceList(ch chan<- []Device) func()
	ListenToConnectedDevices(ch chan<- []Device) func()
	Shutdown()
}

var _ Central = (*Manager)(nil)

const DefaultScanTimeout = 10 * time.Second

type Manager struct {
	adapter     *bluetooth.Adapter
	scanTimeout time.Duration
	logger      *log.Logger

	mu             sync.RWMutex
	devices        map[string]*device
	scanning       bool
	scanCancel     context.CancelFunc
	scanListEvent  *events.ChannelEvent[[]Device]
	connectedEvent *events.ChannelEvent[[]Device]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wraps adapter. A scanTimeout <= 0 uses DefaultScanTimeout.
func NewManager(adapter *bluetooth.Adapter, logger *log.Logger, scanTimeout time.Duration) *Manager {
	if adapter == nil {
		panic("BTManager: adapter cannot be nil")
	}
	if logger == nil {
		panic("BTManager: logger cannot be nil")
	}
	if scanTimeout <= 0 {
		scanTimeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		adapter:        adapter,
		scanTimeout:    scanTimeout,
		logger:         logger,
		devices:        make(map[string]*device),
		scanListEvent:  events.NewChannelEvent[[]Device](true),
		connectedEvent: events.NewChannelEvent[[]Device](true),
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (m *Manager) Enable() error {
	m.adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		d := m.deviceFor(dev.Address)
		if connected {
			m.logger.Printf("BTManager: Device connected: %s", d.GetAddressString())
			d.setConnected(&dev)
		} else {
			m.logger.Printf("BTManager: Device disconnected: %s", d.GetAddressString())
			d.setConnected(nil)
		}
		m.connectedEvent.Notify(m.GetConnectedDevices())
	})
	return m.adapter.Enable()
}

func (m *Manager) deviceFor(address bluetooth.Address) *device {
	key := address.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[key]
	if !ok {
		d = newDevice(m.logger, address, m.scanTimeout)
		m.devices[key] = d
	}
	return d
}

// GetDeviceByAddress returns the device with that address or nil
func (m *Manager) GetDeviceByAddress(address string) Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[address]; ok {
		return d
	}
	return nil
}

// matchesServiceFilter reports whether any advertised UUID is in filter.
// An empty filter matches everything.
func matchesServiceFilter(advertised []string, filter map[string]struct{}) bool {
	if len(filter) == 0 {
		return true
	}
	for _, uuid := range advertised {
		if _, ok := filter[strings.ToLower(uuid)]; ok {
			return true
		}
	}
	return false
}

// StartScan restarts scanning, keeping only devices advertising one of the filter services
func (m *Manager) StartScan(serviceUUIDFilter []string) {
	filter := make(map[string]struct{}, len(serviceUUIDFilter))
	for _, uuid := range serviceUUIDFilter {
		filter[strings.ToLower(uuid)] = struct{}{}
	}

	if m.IsScanning() {
		m.logger.Println("BTManager: Restarting running scan")
		if err := m.StopScan(); err != nil {
			m.logger.Printf("BTManager: Error stopping previous scan: %v", err)
		}
	}

	m.mu.Lock()
	scanCtx, scanCancel := context.WithCancel(m.ctx)
	m.scanning = true
	m.scanCancel = scanCancel
	m.mu.Unlock()

	m.logger.Printf("BTManager: Starting scan, filter %v", serviceUUIDFilter)

	go_func_utils.SafeGoWG(m.logger, &m.wg, func() {
		err := m.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if scanCtx.Err() != nil {
				return
			}
			advertised := make([]string, 0, len(result.ServiceUUIDs()))
			for _, uuid := range result.ServiceUUIDs() {
				advertised = append(advertised, uuid.String())
			}
			if !matchesServiceFilter(advertised, filter) {
				return
			}
			d := m.deviceFor(result.Address)
			isNew := d.lastSeen().Unix() == 0
			d.recordScan(result, time.Now())
			if isNew {
				m.logger.Printf("BTManager: Found device: %s (%s) [RSSI: %d]", d.GetLocalName(), d.GetAddressString(), result.RSSI)
			}
		})
		if err != nil {
			m.logger.Printf("BTManager: Scan error: %v", err)
		}
	})

	go_func_utils.SafeGoWG(m.logger, &m.wg, func() { m.publishScanResults(scanCtx) })
}

// publishScanResults emits the visible devices once a second and forgets stale ones
func (m *Manager) publishScanResults(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.dropStaleDevices()
			m.scanListEvent.Notify(m.GetScanDevices())
		}
	}
}

func (m *Manager) dropStaleDevices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for address, d := range m.devices {
		if d.IsConnected() {
			continue
		}
		if time.Since(d.lastSeen()) > m.scanTimeout {
			delete(m.devices, address)
		}
	}
}

func (m *Manager) StopScan() error {
	m.mu.Lock()
	wasScanning := m.scanning
	m.scanning = false
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}
	m.mu.Unlock()
	if !wasScanning {
		return nil
	}
	return m.adapter.StopScan()
}

func (m *Manager) IsScanning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanning
}

// Connect initiates a connection. Completion is reported through the connect
// handler, so callers wait with Device.WaitForConnection.
func (m *Manager) Connect(dev Device) error {
	address := dev.GetAddressString()
	m.mu.RLock()
	d, ok := m.devices[address]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown device %s", address)
	}

	m.logger.Printf("BTManager: Connecting to %s", address)
	d.setState(Connecting)
	if _, err := m.adapter.Connect(d.address, bluetooth.ConnectionParams{}); err != nil {
		d.setState(Disconnected)
		return fmt.Errorf("connect %s: %w", address, err)
	}
	return nil
}

func (m *Manager) Disconnect(dev Device) error {
	address := dev.GetAddressString()
	m.mu.RLock()
	d, ok := m.devices[address]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown device %s", address)
	}
	conn := d.connectedDevice()
	if conn == nil {
		return nil
	}
	m.logger.Printf("BTManager: Disconnecting from %s", address)
	return conn.Disconnect()
}

func (m *Manager) GetConnectedDevices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Device, 0)
	for _, d := range m.devices {
		if d.IsConnected() {
			result = append(result, d)
		}
	}
	return result
}

func (m *Manager) GetScanDevices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Device, 0)
	for _, d := range m.devices {
		if d.IsRecentlyScanned() {
			result = append(result, d)
		}
	}
	return result
}

// ListenToDeviceList delivers the visible devices at most once per second
func (m *Manager) ListenToDeviceList(ch chan<- []Device) func() {
	return m.scanListEvent.Listen(ch)
}

func (m *Manager) ListenToConnectedDevices(ch chan<- []Device) func() {
	return m.connectedEvent.Listen(ch)
}

// Shutdown disconnects everything, stops scanning and waits for the goroutines
func (m *Manager) Shutdown() {
	m.logger.Println("BTManager: Shutting down")
	for _, d := range m.GetConnectedDevices() {
		if err := m.Disconnect(d); err != nil {
			m.logger.Printf("BTManager: Error disconnecting %s: %v", d.GetAddressString(), err)
		}
	}
	if err := m.StopScan(); err != nil {
		m.logger.Printf("BTManager: Error stopping scan: %v", err)
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Println("BTManager: Shutdown complete")
}
