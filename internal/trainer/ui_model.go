package trainer

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/lowaak/dojo-trainer/internal/bt"
	"github.com/lowaak/dojo-trainer/internal/events"
	"github.com/lowaak/dojo-trainer/internal/go_func_utils"
	"github.com/lowaak/dojo-trainer/internal/player"
	"github.com/lowaak/dojo-trainer/internal/quiz"
	"github.com/lowaak/dojo-trainer/internal/store"
)

type UIDeviceModel struct {
	Name    string
	Address string
	RSSI    int16
}

// UIState holds the current state of the UI that views need to render
type UIState struct {
	Mode UIMode
}

// SessionsView is the session list with the current selection and recent history
type SessionsView struct {
	Sessions []store.SessionSummary
	Selected int
	History  []store.HistorySession
}

// SelectedSession returns the highlighted session, if any
func (v SessionsView) SelectedSession() (store.SessionSummary, bool) {
	if v.Selected < 0 || v.Selected >= len(v.Sessions) {
		return store.SessionSummary{}, false
	}
	return v.Sessions[v.Selected], true
}

// AutoConnectRequest asks the controller to connect the remembered wrist once it shows up in a scan
type AutoConnectRequest struct {
	Device *UIDeviceModel
}

type UIModel struct {
	logEvent              *events.ChannelEvent[string]
	scanDevicesEvent      *events.ChannelEvent[[]*UIDeviceModel]
	scanDevices           []*UIDeviceModel
	connectedWristEvent   *events.ChannelEvent[*UIDeviceModel]
	connectedWrist        *UIDeviceModel
	autoConnectEvent      *events.ChannelEvent[AutoConnectRequest]
	autoConnectRequested  bool
	closeApplicationEvent *events.ChannelEvent[struct{}]
	uiStateEvent          *events.ChannelEvent[UIState]
	uiState               UIState
	sessionsEvent         *events.ChannelEvent[SessionsView]
	sessions              SessionsView
	playerStateEvent      *events.ChannelEvent[player.State]
	quizProgressEvent     *events.ChannelEvent[quiz.Progress]
	persistence           *uiModelPersistence
	logLines              []string
	logMu                 sync.RWMutex
	mu                    sync.RWMutex
	ctx                   context.Context
	cancel                context.CancelFunc
	wg                    sync.WaitGroup
	logger                *log.Logger
}

const maxLogLines = 1000

// NewUIModel creates the model. Preferences are kept in prefsPath.
func NewUIModel(central bt.Central, logger *log.Logger, uiLogChan <-chan string, prefsPath string) *UIModel {
	if central == nil {
		panic("UIModel: central cannot be nil")
	}
	if logger == nil {
		panic("UIModel: logger cannot be nil")
	}
	if uiLogChan == nil {
		panic("UIModel: uiLogChan cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	model := &UIModel{
		logEvent:              events.NewChannelEvent[string](false),
		scanDevicesEvent:      events.NewChannelEvent[[]*UIDeviceModel](true),
		connectedWristEvent:   events.NewChannelEvent[*UIDeviceModel](true),
		autoConnectEvent:      events.NewChannelEvent[AutoConnectRequest](false),
		closeApplicationEvent: events.NewChannelEvent[struct{}](true),
		uiStateEvent:          events.NewChannelEvent[UIState](true),
		uiState:               UIState{Mode: UIModeSessions},
		sessionsEvent:         events.NewChannelEvent[SessionsView](true),
		sessions:              SessionsView{Selected: -1},
		playerStateEvent:      events.NewChannelEvent[player.State](true),
		quizProgressEvent:     events.NewChannelEvent[quiz.Progress](true),
		persistence:           newUIModelPersistence(prefsPath, logger),
		logLines:              make([]string, 0, maxLogLines),
		ctx:                   ctx,
		cancel:                cancel,
		logger:                logger,
	}

	go_func_utils.SafeGoWG(logger, &model.wg, func() { model.listenToScanDevices(ctx, central) })
	go_func_utils.SafeGoWG(logger, &model.wg, func() { model.listenToPhysicalConnections(ctx, central) })
	go_func_utils.SafeGoWG(logger, &model.wg, func() { model.readFromLogChannel(ctx, uiLogChan) })

	return model
}

// Shutdown stops all goroutines and waits for them to finish
func (m *UIModel) Shutdown() {
	m.logger.Println("UIModel: Shutting down")
	m.cancel()
	m.wg.Wait()
	m.logger.Println("UIModel: Shutdown complete")
}

// ListenToLog registers a channel to receive log messages
func (m *UIModel) ListenToLog(ch chan<- string) func() {
	return m.logEvent.Listen(ch)
}

func (m *UIModel) ListenToScanDevices(ch chan<- []*UIDeviceModel) func() {
	return m.scanDevicesEvent.Listen(ch)
}

func (m *UIModel) ListenToConnectedWrist(ch chan<- *UIDeviceModel) func() {
	return m.connectedWristEvent.Listen(ch)
}

func (m *UIModel) ListenToAutoConnect(ch chan<- AutoConnectRequest) func() {
	return m.autoConnectEvent.Listen(ch)
}

func (m *UIModel) ListenToCloseApplication(ch chan<- struct{}) func() {
	return m.closeApplicationEvent.Listen(ch)
}

// RequestCloseApplication signals that the application should close
func (m *UIModel) RequestCloseApplication() {
	m.closeApplicationEvent.Notify(struct{}{})
}

func (m *UIModel) ListenToUIState(ch chan<- UIState) func() {
	return m.uiStateEvent.Listen(ch)
}

// GetUIState returns the current UI state
func (m *UIModel) GetUIState() UIState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uiState
}

// SetMode updates the current UI mode and notifies listeners
func (m *UIModel) SetMode(mode UIMode) {
	m.mu.Lock()
	if m.uiState.Mode == mode {
		m.mu.Unlock()
		return
	}
	m.uiState.Mode = mode
	state := m.uiState
	m.mu.Unlock()

	m.uiStateEvent.Notify(state)
}

func (m *UIModel) ListenToSessions(ch chan<- SessionsView) func() {
	return m.sessionsEvent.Listen(ch)
}

// GetSessions returns a copy of the session list view
func (m *UIModel) GetSessions() SessionsView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copySessionsLocked()
}

// SetSessions replaces the list, keeping the selection on the same session when it still exists
func (m *UIModel) SetSessions(sessions []store.SessionSummary, history []store.HistorySession) {
	m.mu.Lock()
	selectedID := m.persistence.getLastSession()
	if s, ok := m.sessions.SelectedSession(); ok {
		selectedID = s.ID
	}
	m.sessions.Sessions = append([]store.SessionSummary(nil), sessions...)
	m.sessions.History = append([]store.HistorySession(nil), history...)
	m.sessions.Selected = -1
	for i, s := range sessions {
		if s.ID == selectedID {
			m.sessions.Selected = i
		}
	}
	if m.sessions.Selected < 0 && len(sessions) > 0 {
		m.sessions.Selected = 0
	}
	view := m.copySessionsLocked()
	m.mu.Unlock()

	m.sessionsEvent.Notify(view)
}

// SelectSession highlights the session at index. It returns false for an invalid index.
func (m *UIModel) SelectSession(index int) bool {
	m.mu.Lock()
	if index < 0 || index >= len(m.sessions.Sessions) {
		m.mu.Unlock()
		return false
	}
	changed := m.sessions.Selected != index
	m.sessions.Selected = index
	view := m.copySessionsLocked()
	sessionID := m.sessions.Sessions[index].ID
	m.mu.Unlock()

	m.persistence.setLastSession(sessionID)

	if changed {
		m.sessionsEvent.Notify(view)
	}
	return true
}

func (m *UIModel) copySessionsLocked() SessionsView {
	return SessionsView{
		Sessions: append([]store.SessionSummary(nil), m.sessions.Sessions...),
		Selected: m.sessions.Selected,
		History:  append([]store.HistorySession(nil), m.sessions.History...),
	}
}

func (m *UIModel) ListenToPlayerState(ch chan<- player.State) func() {
	return m.playerStateEvent.Listen(ch)
}

// GetPlayerState returns the last published player state
func (m *UIModel) GetPlayerState() player.State {
	state, _ := m.playerStateEvent.Last()
	return state
}

// SetPlayerState republishes a player snapshot to the views
func (m *UIModel) SetPlayerState(state player.State) {
	m.playerStateEvent.Notify(state)
}

func (m *UIModel) ListenToQuizProgress(ch chan<- quiz.Progress) func() {
	return m.quizProgressEvent.Listen(ch)
}

func (m *UIModel) SetQuizProgress(progress quiz.Progress) {
	m.quizProgressEvent.Notify(progress)
}

// GetScanDevices returns the wrists seen in the last scan results
func (m *UIModel) GetScanDevices() []*UIDeviceModel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*UIDeviceModel(nil), m.scanDevices...)
}

// GetConnectedWrist returns the connected wrist or nil
func (m *UIModel) GetConnectedWrist() *UIDeviceModel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectedWrist
}

// SetConnectedWrist records a successful connection and remembers the wrist for the next start
func (m *UIModel) SetConnectedWrist(device *UIDeviceModel) {
	m.mu.Lock()
	m.connectedWrist = device
	m.mu.Unlock()

	if device != nil {
		m.persistence.setPreferredWrist(device.Address)
	}
	m.connectedWristEvent.Notify(device)
}

// ClearConnectedWrist forgets the connection but keeps the remembered wrist
func (m *UIModel) ClearConnectedWrist() {
	m.mu.Lock()
	m.connectedWrist = nil
	m.mu.Unlock()

	m.connectedWristEvent.Notify(nil)
}

// ForgetPreferredWrist stops auto connecting to the remembered wrist
func (m *UIModel) ForgetPreferredWrist() {
	m.persistence.setPreferredWrist("")
}

// readFromLogChannel reads log lines from the channel and populates logLines
func (m *UIModel) readFromLogChannel(ctx context.Context, logChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-logChan:
			if !ok {
				return
			}
			m.logMu.Lock()
			m.logLines = append(m.logLines, line)
			if len(m.logLines) > maxLogLines {
				m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
			}
			m.logMu.Unlock()

			m.logEvent.Notify(line)
		}
	}
}

// GetLogTail returns the last n lines of logs
func (m *UIModel) GetLogTail(n int) []string {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	if n <= 0 {
		return []string{}
	}
	if n > len(m.logLines) {
		n = len(m.logLines)
	}
	result := make([]string, n)
	copy(result, m.logLines[len(m.logLines)-n:])
	return result
}

// listenToScanDevices keeps the sorted list of advertising wrists and asks for an
// auto connect when the remembered wrist appears
func (m *UIModel) listenToScanDevices(ctx context.Context, central bt.Central) {
	deviceChan := make(chan []bt.Device, 1)
	unregister := central.ListenToDeviceList(deviceChan)
	defer unregister()

	for {
		select {
		case <-ctx.Done():
			return
		case devices, ok := <-deviceChan:
			if !ok {
				return
			}
			wrists := make([]bt.Device, 0, len(devices))
			for _, d := range devices {
				if d.HasServiceUUID(WristServiceUUID) {
					wrists = append(wrists, d)
				}
			}
			models := convertDevicesToUIModels(sortDevices(wrists))

			preferred := m.persistence.getPreferredWrist()
			var request *AutoConnectRequest
			m.mu.Lock()
			m.scanDevices = models
			if preferred != "" && m.connectedWrist == nil && !m.autoConnectRequested {
				for _, d := range models {
					if d.Address == preferred {
						request = &AutoConnectRequest{Device: d}
						m.autoConnectRequested = true
					}
				}
			}
			m.mu.Unlock()

			m.scanDevicesEvent.Notify(models)
			if request != nil {
				m.autoConnectEvent.Notify(*request)
			}
		}
	}
}

// listenToPhysicalConnections clears the connected wrist when its link drops
func (m *UIModel) listenToPhysicalConnections(ctx context.Context, central bt.Central) {
	deviceChan := make(chan []bt.Device, 1)
	unregister := central.ListenToConnectedDevices(deviceChan)
	defer unregister()

	for {
		select {
		case <-ctx.Done():
			return
		case devices, ok := <-deviceChan:
			if !ok {
				return
			}
			wrist := m.GetConnectedWrist()
			if wrist == nil {
				continue
			}
			stillConnected := false
			for _, d := range devices {
				if d.GetAddressString() == wrist.Address {
					stillConnected = true
				}
			}
			if !stillConnected {
				m.logger.Printf("UIModel: Wrist %s disconnected", wrist.Address)
				m.mu.Lock()
				m.autoConnectRequested = false
				m.mu.Unlock()
				m.ClearConnectedWrist()
			}
		}
	}
}

func sortDevices(devices []bt.Device) []bt.Device {
	sorted := make([]bt.Device, len(devices))
	copy(sorted, devices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].GetAddressString() < sorted[j].GetAddressString()
	})
	return sorted
}

func convertDevicesToUIModels(devices []bt.Device) []*UIDeviceModel {
	models := make([]*UIDeviceModel, 0, len(devices))
	for _, d := range devices {
		rssi, err := d.GetScanRSSI()
		if err != nil {
			rssi = 0
		}
		models = append(models, &UIDeviceModel{
			Name:    d.GetLocalName(),
			Address: d.GetAddressString(),
			RSSI:    rssi,
		})
	}
	return models
}
