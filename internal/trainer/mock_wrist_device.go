package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/dojo-trainer/internal/bt"
	"github.com/lowaak/dojo-trainer/internal/events"
	"github.com/lowaak/dojo-trainer/internal/go_func_utils"
	"github.com/lowaak/dojo-trainer/internal/remote"
)

const maxReceivedMessages = 200

// ReceivedMessage is a message the mock wrist got from the app
type ReceivedMessage struct {
	Timestamp time.Time      `json:"timestamp"`
	Message   remote.Message `json:"message"`
	Raw       string         `json:"raw"`
}

// MockWristState is returned by the debug page API
type MockWristState struct {
	Address    string            `json:"address"`
	LocalName  string            `json:"localName"`
	Connected  bool              `json:"connected"`
	Subscribed bool              `json:"subscribed"`
	Received   []ReceivedMessage `json:"received"`
}

// MockWristDevice implements bt.Device without Bluetooth hardware. Its debug
// page shows what the app sent and has buttons that notify wrist commands.
type MockWristDevice struct {
	logger    *log.Logger
	address   string
	localName string

	mu              sync.RWMutex
	state           bt.DeviceState
	commandCallback func([]byte)
	received        []ReceivedMessage

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

var _ bt.Device = (*MockWristDevice)(nil)

func NewMockWristDevice(logger *log.Logger, address, localName string) *MockWristDevice {
	if logger == nil {
		panic("MockWristDevice: logger cannot be nil")
	}
	return &MockWristDevice{
		logger:    logger,
		address:   address,
		localName: localName,
		state:     bt.Disconnected,
	}
}

// Start serves the debug page on addr (e.g. ":8099" or "127.0.0.1:0")
func (m *MockWristDevice) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mock wrist debug page: %w", err)
	}
	m.listener = listener
	m.server = &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go_func_utils.SafeGoWG(m.logger, &m.wg, func() {
		m.logger.Printf("MockWristDevice: Debug page on http://%s", listener.Addr())
		if err := m.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			m.logger.Printf("MockWristDevice: Web server error: %v", err)
		}
	})
	return nil
}

// URL returns the debug page address once started
func (m *MockWristDevice) URL() string {
	if m.listener == nil {
		return ""
	}
	return "http://" + m.listener.Addr().String()
}

// Shutdown stops the debug page
func (m *MockWristDevice) Shutdown() {
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Printf("MockWristDevice: Error shutting down web server: %v", err)
	}
	m.wg.Wait()
}

func (m *MockWristDevice) setConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if connected {
		m.state = bt.Connected
		return
	}
	m.state = bt.Disconnected
	m.commandCallback = nil
}

// PressCommand notifies cmd as if the wrist button was pressed
func (m *MockWristDevice) PressCommand(cmd remote.Command) error {
	m.mu.RLock()
	callback := m.commandCallback
	connected := m.state == bt.Connected
	m.mu.RUnlock()
	if !connected || callback == nil {
		return errors.New("wrist is not connected")
	}
	m.logger.Printf("MockWristDevice: Sending %s", cmd)
	callback([]byte(cmd))
	return nil
}

// Received returns the messages written by the app, oldest first
func (m *MockWristDevice) Received() []ReceivedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ReceivedMessage(nil), m.received...)
}

// --- bt.Device ---

func (m *MockWristDevice) GetAddressString() string    { return m.address }
func (m *MockWristDevice) GetLocalName() string        { return m.localName }
func (m *MockWristDevice) GetScanRSSI() (int16, error) { return -50, nil }
func (m *MockWristDevice) IsRecentlyScanned() bool     { return true }

func (m *MockWristDevice) GetState() bt.DeviceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *MockWristDevice) IsConnected() bool {
	return m.GetState() == bt.Connected
}

func (m *MockWristDevice) HasServiceUUID(uuid string) bool {
	return strings.EqualFold(uuid, WristServiceUUID)
}

func (m *MockWristDevice) WaitForConnection(ctx context.Context) error {
	if m.IsConnected() {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *MockWristDevice) EnableNotifications(serviceUUID, characteristicUUID string, callback func(buf []byte)) error {
	if !strings.EqualFold(serviceUUID, WristServiceUUID) || !strings.EqualFold(characteristicUUID, WristCommandCharUUID) {
		return fmt.Errorf("characteristic %s not found in service %s", characteristicUUID, serviceUUID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != bt.Connected {
		return bt.ErrNotConnected
	}
	m.commandCallback = callback
	return nil
}

func (m *MockWristDevice) DisableNotifications(serviceUUID, characteristicUUID string) error {
	return m.EnableNotifications(serviceUUID, characteristicUUID, nil)
}

func (m *MockWristDevice) WriteCharacteristic(serviceUUID, characteristicUUID string, data []byte) error {
	return m.WriteCharacteristicWithoutResponse(serviceUUID, characteristicUUID, data)
}

func (m *MockWristDevice) WriteCharacteristicWithoutResponse(serviceUUID, characteristicUUID string, data []byte) error {
	if !strings.EqualFold(serviceUUID, WristServiceUUID) || !strings.EqualFold(characteristicUUID, WristMessageCharUUID) {
		return fmt.Errorf("characteristic %s not found in service %s", characteristicUUID, serviceUUID)
	}
	msg, err := remote.DecodeMessage(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != bt.Connected {
		return bt.ErrNotConnected
	}
	m.received = append(m.received, ReceivedMessage{Timestamp: time.Now(), Message: msg, Raw: string(data)})
	if len(m.received) > maxReceivedMessages {
		m.received = m.received[len(m.received)-maxReceivedMessages:]
	}
	m.logger.Printf("MockWristDevice: Received %s %q (%d/%d)", msg.Type, msg.Name, msg.StepIndex+1, msg.TotalSteps)
	return nil
}

// --- debug page ---

// Handler serves the debug page and its API
func (m *MockWristDevice) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handleIndex)
	mux.HandleFunc("/api/state", m.handleGetState)
	mux.HandleFunc("/api/command", m.handleCommand)
	return mux
}

func (m *MockWristDevice) handleGetState(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	state := MockWristState{
		Address:    m.address,
		LocalName:  m.localName,
		Connected:  m.state == bt.Connected,
		Subscribed: m.commandCallback != nil,
		Received:   append([]ReceivedMessage{}, m.received...),
	}
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		m.logger.Printf("MockWristDevice: Error encoding state: %v", err)
	}
}

func (m *MockWristDevice) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cmd, err := remote.ParseCommand([]byte(r.URL.Query().Get("name")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := m.PressCommand(cmd); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockWristDevice) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write([]byte(mockWristPage)); err != nil {
		m.logger.Printf("MockWristDevice: Error writing page: %v", err)
	}
}

const mockWristPage = `<!DOCTYPE html>
<html>
<head>
    <title>Mock Wrist</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px; }
        .section { margin: 20px 0; padding: 15px; border: 1px solid #ccc; border-radius: 5px; }
        button { padding: 10px 20px; margin: 5px; cursor: pointer; }
        #step { font-size: 28px; font-weight: bold; margin: 10px 0; }
        #received { max-height: 300px; overflow-y: auto; font-family: monospace; font-size: 12px; }
        .entry { padding: 4px; border-bottom: 1px solid #eee; }
    </style>
</head>
<body>
    <h1>Mock Wrist</h1>
    <div class="section">
        <div id="status">...</div>
        <div id="step">-</div>
    </div>
    <div class="section">
        <button onclick="send('startTraining')">Start training</button>
        <button onclick="send('nextMove')">Next move</button>
        <button onclick="send('endTraining')">End training</button>
        <div id="error" style="color: #b00"></div>
    </div>
    <div class="section">
        <h2>Received</h2>
        <div id="received">Nothing yet</div>
    </div>
    <script>
        function send(name) {
            fetch('/api/command?name=' + name, {method: 'POST'})
                .then(r => r.ok ? '' : r.text())
                .then(t => { document.getElementById('error').textContent = t; refresh(); });
        }
        function refresh() {
            fetch('/api/state').then(r => r.json()).then(s => {
                document.getElementById('status').textContent =
                    s.localName + ' (' + s.address + ') ' + (s.connected ? 'connected' : 'disconnected');
                const last = s.received.length ? s.received[s.received.length - 1].message : null;
                if (!last) {
                    document.getElementById('step').textContent = '-';
                } else if (last.type === 'completion') {
                    document.getElementById('step').textContent = 'Complete (' + last.totalSteps + ' steps)';
                } else {
                    document.getElementById('step').textContent =
                        last.name + ' ' + (last.stepIndex + 1) + '/' + last.totalSteps;
                }
                document.getElementById('received').innerHTML = s.received.map(e =>
                    '<div class="entry">' + new Date(e.timestamp).toLocaleTimeString() + ' ' + e.raw + '</div>'
                ).reverse().join('') || 'Nothing yet';
            });
        }
        refresh();
        setInterval(refresh, 1000);
    </script>
</body>
</html>`

// --- MockCentral ---

// MockCentral implements bt.Central around a single MockWristDevice
type MockCentral struct {
	logger *log.Logger
	wrist  *MockWristDevice

	mu       sync.RWMutex
	scanning bool

	scanListEvent  *events.ChannelEvent[[]bt.Device]
	connectedEvent *events.ChannelEvent[[]bt.Device]
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

var _ bt.Central = (*MockCentral)(nil)

func NewMockCentral(logger *log.Logger, wrist *MockWristDevice) *MockCentral {
	if logger == nil {
		panic("MockCentral: logger cannot be nil")
	}
	if wrist == nil {
		panic("MockCentral: wrist cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MockCentral{
		logger:         logger,
		wrist:          wrist,
		scanListEvent:  events.NewChannelEvent[[]bt.Device](true),
		connectedEvent: events.NewChannelEvent[[]bt.Device](true),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Wrist returns the simulated device
func (m *MockCentral) Wrist() *MockWristDevice {
	return m.wrist
}

func (m *MockCentral) Enable() error {
	m.logger.Println("MockCentral: Enabled, the mock wrist appears when scanning")
	m.connectedEvent.Notify([]bt.Device{})
	return nil
}

func (m *MockCentral) GetDeviceByAddress(address string) bt.Device {
	if address == m.wrist.address {
		return m.wrist
	}
	return nil
}

func (m *MockCentral) StartScan(serviceUUIDFilter []string) {
	m.mu.Lock()
	if m.scanning {
		m.mu.Unlock()
		return
	}
	m.scanning = true
	m.mu.Unlock()
	m.logger.Println("MockCentral: Starting scan")

	go_func_utils.SafeGoWG(m.logger, &m.wg, func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		m.scanListEvent.Notify(m.GetScanDevices())
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				if !m.IsScanning() {
					return
				}
				m.scanListEvent.Notify(m.GetScanDevices())
			}
		}
	})
}

func (m *MockCentral) StopScan() error {
	m.mu.Lock()
	m.scanning = false
	m.mu.Unlock()
	return nil
}

func (m *MockCentral) IsScanning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanning
}

func (m *MockCentral) Connect(device bt.Device) error {
	if device.GetAddressString() != m.wrist.address {
		return fmt.Errorf("unknown device %s", device.GetAddressString())
	}
	m.wrist.setConnected(true)
	m.connectedEvent.Notify(m.GetConnectedDevices())
	return nil
}

func (m *MockCentral) Disconnect(device bt.Device) error {
	if device.GetAddressString() != m.wrist.address {
		return fmt.Errorf("unknown device %s", device.GetAddressString())
	}
	m.wrist.setConnected(false)
	m.connectedEvent.Notify(m.GetConnectedDevices())
	return nil
}

func (m *MockCentral) GetConnectedDevices() []bt.Device {
	if m.wrist.IsConnected() {
		return []bt.Device{m.wrist}
	}
	return []bt.Device{}
}

func (m *MockCentral) GetScanDevices() []bt.Device {
	if m.IsScanning() {
		return []bt.Device{m.wrist}
	}
	return []bt.Device{}
}

func (m *MockCentral) ListenToDeviceList(ch chan<- []bt.Device) func() {
	return m.scanListEvent.Listen(ch)
}

func (m *MockCentral) ListenToConnectedDevices(ch chan<- []bt.Device) func() {
	return m.connectedEvent.Listen(ch)
}

func (m *MockCentral) Shutdown() {
	m.logger.Println("MockCentral: Shutting down")
	_ = m.StopScan()
	m.cancel()
	m.wg.Wait()
	m.wrist.Shutdown()
	m.logger.Println("MockCentral: Shutdown complete")
}
