package trainer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/dojo-trainer/internal/go_func_utils"
	"github.com/lowaak/dojo-trainer/internal/player"
	"github.com/lowaak/dojo-trainer/internal/quiz"
)

// BaseUIView contains the base logic shared by all UI implementations
type BaseUIView struct {
	uiViewImpl   UIViewImpl
	uiModel      *UIModel
	uiController *UIController
	context      context.Context
	cancelFunc   context.CancelFunc
	waitGroup    sync.WaitGroup
	logger       *log.Logger
}

// NewBaseUIViewArg holds the arguments for creating a new BaseUIView
type NewBaseUIViewArg struct {
	UIViewImpl   UIViewImpl
	UIModel      *UIModel
	UIController *UIController
	Logger       *log.Logger
}

// NewBaseUIView creates a new BaseUIView with the given implementation
func NewBaseUIView(args NewBaseUIViewArg) *BaseUIView {
	if args.Logger == nil {
		panic("BaseUIView: logger cannot be nil")
	}
	if args.UIViewImpl == nil {
		panic("BaseUIView: UIViewImpl cannot be nil")
	}
	if args.UIModel == nil {
		panic("BaseUIView: UIModel cannot be nil")
	}
	if args.UIController == nil {
		panic("BaseUIView: UIController cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())

	base := &BaseUIView{
		uiViewImpl:   args.UIViewImpl,
		uiModel:      args.UIModel,
		uiController: args.UIController,
		context:      ctx,
		cancelFunc:   cancel,
		logger:       args.Logger,
	}

	args.UIViewImpl.Initialize(args.UIController)
	args.UIViewImpl.SetupKeyboardHandlers(args.UIController)
	args.UIViewImpl.SetMode(args.UIModel.GetUIState().Mode)

	go_func_utils.SafeGoWG(base.logger, &base.waitGroup, base.monitorLogResize)
	base.updateLogDisplay()

	base.setupEventListeners()
	args.UIController.RefreshSessions()

	return base
}

// forward runs apply for every value published on an event until the view shuts down.
// The view is redrawn after each update.
func forward[T any](base *BaseUIView, listen func(chan<- T) func(), apply func(T)) {
	ch := make(chan T, 1)
	unregister := listen(ch)
	go_func_utils.SafeGoWG(base.logger, &base.waitGroup, func() {
		defer unregister()
		for {
			select {
			case <-base.context.Done():
				return
			case value, ok := <-ch:
				if !ok {
					return
				}
				apply(value)
				base.draw()
			}
		}
	})
}

func (base *BaseUIView) setupEventListeners() {
	model := base.uiModel
	impl := base.uiViewImpl

	// A new log line only signals a refresh of the visible tail
	forward(base, model.ListenToLog, func(string) { base.updateLogDisplay() })

	forward(base, model.ListenToSessions, func(SessionsView) {
		impl.SetSessions(model.GetSessions())
	})

	// Snapshots may be dropped when the view falls behind; always render the latest
	forward(base, model.ListenToPlayerState, func(player.State) {
		impl.UpdatePlayerState(model.GetPlayerState())
	})

	forward(base, model.ListenToQuizProgress, func(p quiz.Progress) {
		impl.UpdateQuizProgress(p)
	})

	forward(base, model.ListenToScanDevices, func([]*UIDeviceModel) {
		devices := model.GetScanDevices()
		items := make([]string, 0, len(devices))
		for _, d := range devices {
			items = append(items, formatScanDeviceName(d))
		}
		impl.SetScanDeviceList(items)
	})

	forward(base, model.ListenToConnectedWrist, func(*UIDeviceModel) {
		impl.SetConnectedWrist(model.GetConnectedWrist())
	})

	forward(base, model.ListenToUIState, func(state UIState) {
		impl.SetMode(state.Mode)
	})

	closeChan := make(chan struct{}, 1)
	closeUnregister := model.ListenToCloseApplication(closeChan)
	go_func_utils.SafeGoWG(base.logger, &base.waitGroup, func() {
		defer closeUnregister()
		select {
		case <-base.context.Done():
			return
		case _, ok := <-closeChan:
			if !ok {
				return
			}
			impl.Stop()
		}
	})
}

func (base *BaseUIView) draw() {
	if err := base.uiViewImpl.Draw(); err != nil {
		base.logger.Printf("BaseUIView: Error drawing: %v", err)
	}
}

func (base *BaseUIView) updateLogDisplay() {
	height := base.uiViewImpl.GetLogViewHeight()
	if height <= 0 {
		return
	}

	logLines := base.uiModel.GetLogTail(height)

	base.uiViewImpl.ClearLogView()
	for _, line := range logLines {
		if err := base.uiViewImpl.WriteLogLine(line); err != nil {
			base.logger.Printf("BaseUIView: Error writing to log view: %v", err)
		}
	}
}

func (base *BaseUIView) monitorLogResize() {
	var lastHeight int
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-base.context.Done():
			return
		case <-ticker.C:
			height := base.uiViewImpl.GetLogViewHeight()
			if height != lastHeight && height > 0 {
				lastHeight = height
				base.updateLogDisplay()
				base.draw()
			}
		}
	}
}

// Shutdown stops all goroutines and waits for them to finish
func (base *BaseUIView) Shutdown() {
	base.logger.Println("BaseUIView: Shutting down")
	base.cancelFunc()
	base.waitGroup.Wait()
	base.logger.Println("BaseUIView: Shutdown complete")
}

// Run starts the UI and blocks until it exits
func (base *BaseUIView) Run() error {
	return base.uiViewImpl.Run()
}

func formatScanDeviceName(device *UIDeviceModel) string {
	return fmt.Sprintf("%s (%s) %d dBm", device.Name, device.Address, device.RSSI)
}
