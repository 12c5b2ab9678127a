package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/dojo-trainer/internal/go_func_utils"
	"github.com/lowaak/dojo-trainer/internal/player"
	"github.com/lowaak/dojo-trainer/internal/quiz"
	"github.com/lowaak/dojo-trainer/internal/remote"
	"github.com/lowaak/dojo-trainer/internal/speech"
	"github.com/lowaak/dojo-trainer/internal/store"
	"github.com/lowaak/dojo-trainer/internal/training"
)

// ErrQuizUnavailable is returned when a quiz cannot start while a session plays
var ErrQuizUnavailable = errors.New("finish the running session before starting a quiz")

// Catalog is the storage the controller reads sessions from and writes quiz history to
type Catalog interface {
	training.SessionLoader
	training.ItemLoader
	training.HistoryStore
	ListSessions(ctx context.Context) ([]store.SessionSummary, error)
	ListHistory(ctx context.Context, limit int) ([]store.HistorySession, error)
}

// NewUIControllerArg holds the arguments for creating a new UIController
type NewUIControllerArg struct {
	Model      *UIModel
	Catalog    Catalog
	Player     *player.Player
	Wrist      *WristHandler
	Notifier   *remote.Notifier
	Recognizer *speech.ManualRecognizer
	Announcer  speech.Announcer
	// MatchThreshold is used by the quiz; negative uses the matcher default
	MatchThreshold int
	Logger         *log.Logger
}

// UIController handles UI events and coordinates the player, quiz and wrist with the UIModel
type UIController struct {
	model      *UIModel
	catalog    Catalog
	player     *player.Player
	wrist      *WristHandler
	notifier   *remote.Notifier
	recognizer *speech.ManualRecognizer
	announcer  speech.Announcer
	threshold  int
	logger     *log.Logger

	quizMu             sync.Mutex
	quiz               *quiz.Driver
	stopQuizProgress   func()
	unregisterCommands func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewUIController creates a new UIController with the given dependencies
func NewUIController(args NewUIControllerArg) *UIController {
	if args.Model == nil {
		panic("UIController: model cannot be nil")
	}
	if args.Catalog == nil {
		panic("UIController: catalog cannot be nil")
	}
	if args.Player == nil {
		panic("UIController: player cannot be nil")
	}
	if args.Wrist == nil {
		panic("UIController: wrist cannot be nil")
	}
	if args.Notifier == nil {
		panic("UIController: notifier cannot be nil")
	}
	if args.Recognizer == nil {
		panic("UIController: recognizer cannot be nil")
	}
	if args.Announcer == nil {
		panic("UIController: announcer cannot be nil")
	}
	if args.Logger == nil {
		panic("UIController: logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &UIController{
		model:      args.Model,
		catalog:    args.Catalog,
		player:     args.Player,
		wrist:      args.Wrist,
		notifier:   args.Notifier,
		recognizer: args.Recognizer,
		announcer:  args.Announcer,
		threshold:  args.MatchThreshold,
		logger:     args.Logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	c.unregisterCommands = c.notifier.OnCommand(c.handleRemoteCommand)
	go_func_utils.SafeGoWG(c.logger, &c.wg, c.listenToAutoConnect)
	go_func_utils.SafeGoWG(c.logger, &c.wg, c.forwardPlayerState)

	return c
}

func (c *UIController) listenToAutoConnect() {
	ch := make(chan AutoConnectRequest, 1)
	unregister := c.model.ListenToAutoConnect(ch)
	defer unregister()

	for {
		select {
		case <-c.ctx.Done():
			return
		case req, ok := <-ch:
			if !ok {
				return
			}
			c.logger.Printf("UIController: Auto-connecting wrist %s", req.Device.Address)
			c.WristSelected(req.Device)
		}
	}
}

// forwardPlayerState republishes player snapshots to the model and reloads history
// when a session ends
func (c *UIController) forwardPlayerState() {
	ch := make(chan player.State, 16)
	unregister := c.player.ListenToState(ch)
	defer unregister()

	lastPhase := player.PhaseIdle
	lastSaved := false
	for {
		select {
		case <-c.ctx.Done():
			return
		case state, ok := <-ch:
			if !ok {
				return
			}
			c.model.SetPlayerState(state)
			if state.Phase == player.PhaseComplete && (lastPhase != player.PhaseComplete || state.Saved != lastSaved) {
				c.RefreshSessions()
			}
			lastPhase = state.Phase
			lastSaved = state.Saved
		}
	}
}

// handleRemoteCommand runs on the notifier goroutine. nextMove is delivered to the
// player directly through OnRemoteAdvance.
func (c *UIController) handleRemoteCommand(cmd remote.Command) {
	switch cmd {
	case remote.CommandStartTraining:
		if c.player.State().Phase.Active() {
			c.logger.Printf("UIController: Wrist asked to start but a session is already playing")
			return
		}
		c.StartSelectedSession()
	case remote.CommandEndTraining:
		if !c.player.State().Phase.Active() {
			return
		}
		c.CancelSession()
	}
}

// --- Sessions ---

// RefreshSessions reloads the session list and recent history into the model
func (c *UIController) RefreshSessions() {
	ctx, cancel := context.WithTimeout(c.ctx, uiRequestTimeout)
	defer cancel()

	sessions, err := c.catalog.ListSessions(ctx)
	if err != nil {
		c.logger.Printf("UIController: Loading sessions failed: %v", err)
		return
	}
	history, err := c.catalog.ListHistory(ctx, maxHistoryRows)
	if err != nil {
		c.logger.Printf("UIController: Loading history failed: %v", err)
		history = nil
	}
	c.model.SetSessions(sessions, history)
}

// OnSessionSelected highlights the session at index
func (c *UIController) OnSessionSelected(index int) {
	if !c.model.SelectSession(index) {
		c.logger.Printf("UIController: Invalid session index: %d", index)
	}
}

// StartSelectedSession plays the highlighted session and switches to the training screen
func (c *UIController) StartSelectedSession() {
	session, ok := c.model.GetSessions().SelectedSession()
	if !ok {
		c.logger.Printf("UIController: No session selected")
		return
	}
	if c.quizRunning() {
		c.logger.Printf("UIController: Finish the quiz before starting a session")
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, uiRequestTimeout)
	defer cancel()
	if err := c.player.Start(ctx, session.ID); err != nil {
		c.logger.Printf("UIController: Starting %q failed: %v", session.Name, err)
		if errors.Is(err, player.ErrUnsavedHistory) {
			c.model.SetMode(UIModeTraining)
		}
		return
	}
	c.model.SetMode(UIModeTraining)
}

// --- Player controls ---

func (c *UIController) Next() {
	c.player.Next()
}

func (c *UIController) StopTimer() {
	c.player.StopTimer()
}

func (c *UIController) CancelSession() {
	c.player.Cancel()
}

// RetrySave saves the history of a finished session again after a failure
func (c *UIController) RetrySave() {
	ctx, cancel := context.WithTimeout(c.ctx, uiRequestTimeout)
	defer cancel()
	if err := c.player.RetrySave(ctx); err != nil {
		c.logger.Printf("UIController: Retry save failed: %v", err)
		return
	}
	c.logger.Printf("UIController: Results saved")
}

// SubmitTranscript delivers typed text to the quiz when one runs, otherwise to
// whoever listens on the recognizer
func (c *UIController) SubmitTranscript(text string) {
	c.quizMu.Lock()
	driver := c.quiz
	c.quizMu.Unlock()

	if driver != nil {
		driver.HandleTranscript(text)
		return
	}
	if err := c.recognizer.Feed(text); err != nil {
		if errors.Is(err, speech.ErrNotListening) {
			c.logger.Printf("UIController: Nothing is listening for %q", text)
			return
		}
		c.logger.Printf("UIController: Transcript rejected: %v", err)
	}
}

// --- Quiz ---

func (c *UIController) quizRunning() bool {
	c.quizMu.Lock()
	defer c.quizMu.Unlock()
	return c.quiz != nil
}

// StartQuiz begins a quiz over the techniques of the highlighted session
func (c *UIController) StartQuiz() error {
	if c.player.State().Phase.Active() {
		return ErrQuizUnavailable
	}
	session, ok := c.model.GetSessions().SelectedSession()
	if !ok {
		return errors.New("no session selected")
	}

	c.quizMu.Lock()
	defer c.quizMu.Unlock()
	if c.quiz != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, uiRequestTimeout)
	defer cancel()
	cfg, err := c.loadConfiguration(ctx, session.ID)
	if err != nil {
		return err
	}

	driver := quiz.NewDriver(cfg, quiz.Dependencies{
		Recognizer: c.recognizer,
		Announcer:  c.announcer,
		History:    c.catalog,
	}, c.threshold, c.logger)

	progress := make(chan quiz.Progress, 16)
	unregister := driver.ListenToProgress(progress)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go_func_utils.SafeGoWG(c.logger, &c.wg, func() {
		defer close(stopped)
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-done:
				return
			case p := <-progress:
				c.model.SetQuizProgress(p)
			}
		}
	})
	c.stopQuizProgress = func() {
		unregister()
		close(done)
		<-stopped
	}

	c.quiz = driver
	driver.Start()
	c.logger.Printf("UIController: Quiz over %d techniques of %q", len(driver.Pending()), cfg.Name)
	c.model.SetMode(UIModeQuiz)
	return nil
}

// FinishQuiz ends the running quiz and saves its history
func (c *UIController) FinishQuiz() error {
	c.quizMu.Lock()
	driver := c.quiz
	c.quizMu.Unlock()
	if driver == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, uiRequestTimeout)
	defer cancel()
	records, err := driver.Finish(ctx)
	if err != nil {
		// The driver keeps its records so Finish can be called again
		return err
	}

	c.quizMu.Lock()
	if c.quiz == driver {
		c.quiz = nil
		if c.stopQuizProgress != nil {
			c.stopQuizProgress()
			c.stopQuizProgress = nil
		}
		// The summary lists the techniques left unnamed as pending
		c.model.SetQuizProgress(quizSummary(records))
	}
	c.quizMu.Unlock()

	known := 0
	for _, r := range records {
		if r.Known {
			known++
		}
	}
	c.logger.Printf("UIController: Quiz finished, %d of %d known", known, len(records))
	c.RefreshSessions()
	return nil
}

func quizSummary(records []training.Record) quiz.Progress {
	p := quiz.Progress{Done: true, Pending: []string{}, Known: []string{}}
	for _, r := range records {
		if r.Known {
			p.Known = append(p.Known, r.ItemName)
		} else {
			p.Pending = append(p.Pending, r.ItemName)
		}
	}
	return p
}

func (c *UIController) loadConfiguration(ctx context.Context, sessionID string) (*training.SessionConfiguration, error) {
	def, err := c.catalog.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	items, err := training.LoadItems(ctx, c.catalog, def.ID)
	if err != nil {
		return nil, fmt.Errorf("loading items of %q: %w", def.Name, err)
	}
	// Quiz order does not matter, so randomization is skipped
	def.RandomizeOrder = false
	return training.NewSessionConfiguration(def, items, nil)
}

// --- Wrist ---

// WristSelected connects the wrist chosen from the scan list
func (c *UIController) WristSelected(device *UIDeviceModel) {
	if device == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, uiRequestTimeout+DefaultWristConnectTimeout)
	defer cancel()
	if err := c.wrist.Connect(ctx, device.Address); err != nil {
		c.logger.Printf("UIController: Connecting wrist failed: %v", err)
		return
	}
	c.model.SetConnectedWrist(device)
}

// DisconnectWrist drops the wrist link and stops auto connecting to it
func (c *UIController) DisconnectWrist() {
	if c.model.GetConnectedWrist() == nil {
		c.logger.Printf("UIController: No wrist connected")
		return
	}
	if err := c.wrist.Disconnect(); err != nil {
		c.logger.Printf("UIController: Disconnect failed: %v", err)
	}
	c.model.ForgetPreferredWrist()
	c.model.ClearConnectedWrist()
}

func (c *UIController) StartWristScan() {
	if c.wrist.IsScanning() {
		return
	}
	c.wrist.StartScan()
}

func (c *UIController) StopWristScan() {
	if !c.wrist.IsScanning() {
		return
	}
	if err := c.wrist.StopScan(); err != nil {
		c.logger.Printf("UIController: Error stopping scan: %v", err)
	}
}

func (c *UIController) ToggleWristScan() {
	if c.wrist.IsScanning() {
		c.StopWristScan()
	} else {
		c.StartWristScan()
	}
}

// OnModeChange handles when the user requests a mode change
func (c *UIController) OnModeChange(mode UIMode) {
	if info, ok := GetUIModeInfo(mode); ok {
		c.logger.Printf("UIController: Switching to %s", info.DisplayName)
	}
	// Scan only while the wrist screen is open
	if mode == UIModeWrist {
		c.StartWristScan()
	} else {
		c.StopWristScan()
	}
	if mode == UIModeSessions {
		c.RefreshSessions()
	}
	c.model.SetMode(mode)
}

// OnEscapeKey handles when the Escape key is pressed
func (c *UIController) OnEscapeKey() {
	c.model.RequestCloseApplication()
}

// Shutdown stops the controller goroutines, any running session and quiz, and the
// collaborators the controller drives
func (c *UIController) Shutdown() {
	c.logger.Println("UIController: Shutting down")
	if c.quizRunning() {
		if err := c.FinishQuiz(); err != nil {
			c.logger.Printf("UIController: Quiz results not saved: %v", err)
		}
	}
	if c.unregisterCommands != nil {
		c.unregisterCommands()
	}
	c.cancel()
	c.wg.Wait()
	c.player.Shutdown()
	c.notifier.Close()
	c.logger.Println("UIController: Shutdown complete")
}
