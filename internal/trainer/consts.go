package trainer

import "time"

// Wrist GATT layout. The wrist advertises the service, accepts step and
// completion messages on the write characteristic and notifies commands.
const (
	WristServiceUUID     = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	WristMessageCharUUID = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	WristCommandCharUUID = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

const (
	DefaultWristConnectTimeout = 10 * time.Second
	// Requests issued from the UI (loading sessions, saving quiz results) give up after this
	uiRequestTimeout = 10 * time.Second
	maxHistoryRows   = 5
)

// UIMode represents the current UI mode/screen
type UIMode int

const (
	UIModeSessions UIMode = iota // Session list and history
	UIModeTraining               // Active session
	UIModeQuiz                   // Speech quiz over the selected session's techniques
	UIModeWrist                  // Wrist scanning and connection
)

// UIModeInfo contains display information for a UI mode
type UIModeInfo struct {
	Mode        UIMode
	DisplayName string
	KeyBinding  rune
}

// AllUIModes defines all available UI modes in order
var AllUIModes = []UIModeInfo{
	{Mode: UIModeSessions, DisplayName: "Sessions", KeyBinding: '1'},
	{Mode: UIModeTraining, DisplayName: "Training", KeyBinding: '2'},
	{Mode: UIModeQuiz, DisplayName: "Quiz", KeyBinding: '3'},
	{Mode: UIModeWrist, DisplayName: "Wrist", KeyBinding: '4'},
}

// GetUIModeByKey returns the mode for a given key binding
func GetUIModeByKey(key rune) (UIMode, bool) {
	for _, info := range AllUIModes {
		if info.KeyBinding == key {
			return info.Mode, true
		}
	}
	return 0, false
}

// GetUIModeInfo returns the display information for a mode
func GetUIModeInfo(mode UIMode) (UIModeInfo, bool) {
	for _, info := range AllUIModes {
		if info.Mode == mode {
			return info, true
		}
	}
	return UIModeInfo{}, false
}
