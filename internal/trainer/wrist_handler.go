package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/dojo-trainer/internal/bt"
	"github.com/lowaak/dojo-trainer/internal/events"
	"github.com/lowaak/dojo-trainer/internal/remote"
)

var ErrWristNotConnected = errors.New("no wrist connected")

// WristHandler carries remote messages over the wrist BLE link
type WristHandler struct {
	central        bt.Central
	logger         *log.Logger
	connectTimeout time.Duration

	mu      sync.RWMutex
	address string

	commandEvent *events.ChannelEvent[remote.Command]
}

var _ remote.Transport = (*WristHandler)(nil)

// NewWristHandler creates a handler. connectTimeout <= 0 uses DefaultWristConnectTimeout.
func NewWristHandler(central bt.Central, logger *log.Logger, connectTimeout time.Duration) *WristHandler {
	if central == nil {
		panic("WristHandler: central cannot be nil")
	}
	if logger == nil {
		panic("WristHandler: logger cannot be nil")
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultWristConnectTimeout
	}
	return &WristHandler{
		central:        central,
		logger:         logger,
		connectTimeout: connectTimeout,
		commandEvent:   events.NewChannelEvent[remote.Command](false),
	}
}

// Connect links the wrist at address and subscribes to its commands
func (h *WristHandler) Connect(ctx context.Context, address string) error {
	device := h.central.GetDeviceByAddress(address)
	if device == nil {
		return fmt.Errorf("device not found: %s", address)
	}
	if !device.HasServiceUUID(WristServiceUUID) {
		return fmt.Errorf("%s (%s) does not advertise the wrist service", device.GetLocalName(), address)
	}

	if !device.IsConnected() {
		h.logger.Printf("WristHandler: Connecting to %s (%s)", device.GetLocalName(), address)
		if err := h.central.Connect(device); err != nil {
			return fmt.Errorf("failed to initiate connection: %w", err)
		}
		waitCtx, cancel := context.WithTimeout(ctx, h.connectTimeout)
		defer cancel()
		if err := device.WaitForConnection(waitCtx); err != nil {
			return fmt.Errorf("connection timeout: %w", err)
		}
	}

	if err := device.EnableNotifications(WristServiceUUID, WristCommandCharUUID, h.handleCommandNotification); err != nil {
		return fmt.Errorf("subscribe to wrist commands: %w", err)
	}

	h.mu.Lock()
	h.address = address
	h.mu.Unlock()
	h.logger.Printf("WristHandler: Wrist %s ready", address)
	return nil
}

// Disconnect unsubscribes and drops the link to the current wrist
func (h *WristHandler) Disconnect() error {
	h.mu.Lock()
	address := h.address
	h.address = ""
	h.mu.Unlock()
	if address == "" {
		return ErrWristNotConnected
	}

	device := h.central.GetDeviceByAddress(address)
	if device == nil {
		return nil
	}
	if device.IsConnected() {
		if err := device.DisableNotifications(WristServiceUUID, WristCommandCharUUID); err != nil {
			h.logger.Printf("WristHandler: Failed to unsubscribe from %s: %v", address, err)
		}
	}
	if err := h.central.Disconnect(device); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	h.logger.Printf("WristHandler: Disconnected %s", address)
	return nil
}

// ConnectedAddress returns the address of the wrist in use or ""
func (h *WristHandler) ConnectedAddress() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.address
}

// Send writes msg to the wrist. A wrist that dropped its link is forgotten.
func (h *WristHandler) Send(ctx context.Context, msg remote.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	address := h.ConnectedAddress()
	if address == "" {
		return ErrWristNotConnected
	}
	device := h.central.GetDeviceByAddress(address)
	if device == nil || !device.IsConnected() {
		h.mu.Lock()
		if h.address == address {
			h.address = ""
		}
		h.mu.Unlock()
		return fmt.Errorf("%s: %w", address, ErrWristNotConnected)
	}

	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	return device.WriteCharacteristicWithoutResponse(WristServiceUUID, WristMessageCharUUID, payload)
}

// Listen delivers commands notified by the wrist
func (h *WristHandler) Listen(ch chan<- remote.Command) func() {
	return h.commandEvent.Listen(ch)
}

func (h *WristHandler) handleCommandNotification(buf []byte) {
	cmd, err := remote.ParseCommand(buf)
	if err != nil {
		h.logger.Printf("WristHandler: Ignoring notification %q: %v", buf, err)
		return
	}
	h.commandEvent.Notify(cmd)
}

func (h *WristHandler) StartScan() {
	h.logger.Printf("WristHandler: Scanning for wrists")
	h.central.StartScan([]string{WristServiceUUID})
}

func (h *WristHandler) StopScan() error {
	return h.central.StopScan()
}

func (h *WristHandler) IsScanning() bool {
	return h.central.IsScanning()
}
