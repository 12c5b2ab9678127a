package trainer

import (
	"github.com/lowaak/dojo-trainer/internal/player"
	"github.com/lowaak/dojo-trainer/internal/quiz"
)

// UIViewImpl defines the interface for framework-specific UI implementations
type UIViewImpl interface {
	// Initialize is called after construction to set up framework-specific widgets
	// controller is used to handle UI events
	Initialize(controller *UIController)

	// SetupKeyboardHandlers sets up keyboard event handlers
	SetupKeyboardHandlers(controller *UIController)

	// Run starts the UI framework and blocks until it exits
	Run() error

	// Stop stops the UI framework
	Stop()

	// Draw refreshes/redraws the UI
	Draw() error

	// --- Mode Management ---

	SetMode(mode UIMode)
	GetCurrentMode() UIMode

	// --- Log View (shared across modes) ---

	GetLogViewHeight() int
	ClearLogView()
	WriteLogLine(line string) error

	// --- Sessions Mode ---

	// SetSessions shows the session list, the selection and recent history
	SetSessions(view SessionsView)

	// --- Training Mode ---

	// UpdatePlayerState renders the current session step
	UpdatePlayerState(state player.State)

	// --- Quiz Mode ---

	UpdateQuizProgress(progress quiz.Progress)

	// --- Wrist Mode ---

	// SetScanDeviceList updates the list of advertising wrists
	SetScanDeviceList(items []string)

	// SetConnectedWrist shows the connected wrist, nil when none
	SetConnectedWrist(device *UIDeviceModel)
}
