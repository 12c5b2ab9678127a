package trainer

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/dojo-trainer/internal/player"
	"github.com/lowaak/dojo-trainer/internal/quiz"
)

// Page names for tview.Pages
const (
	pageSessions = "sessions"
	pageTraining = "training"
	pageQuiz     = "quiz"
	pageWrist    = "wrist"
)

// CursesUIViewImpl implements UIViewImpl using tview (curses-based terminal UI)
type CursesUIViewImpl struct {
	logger      *log.Logger
	app         *tview.Application
	model       *UIModel
	currentMode UIMode

	pages    *tview.Pages
	logView  *tview.TextView
	mainFlex *tview.Flex

	// Sessions mode
	sessionsFlex       *tview.Flex
	sessionsTabWidgets []*tview.Box
	sessionList        *tview.List
	sessionDetails     *tview.TextView
	sessions           SessionsView
	// rebuilding suppresses list callbacks while SetSessions refills the list
	rebuilding atomic.Bool

	// Training mode
	trainingFlex       *tview.Flex
	trainingTabWidgets []*tview.Box
	stepPanel          *tview.TextView
	trainingInput      *tview.InputField

	// Quiz mode
	quizFlex       *tview.Flex
	quizTabWidgets []*tview.Box
	quizPanel      *tview.TextView
	quizInput      *tview.InputField

	// Wrist mode
	wristFlex       *tview.Flex
	wristTabWidgets []*tview.Box
	wristList       *tview.List
	connectedWrist  *tview.TextView
}

func NewCursesUIView(logger *log.Logger, app *tview.Application, model *UIModel) *CursesUIViewImpl {
	return &CursesUIViewImpl{
		logger:      logger,
		app:         app,
		model:       model,
		currentMode: UIModeSessions,
	}
}

// Initialize sets up the tview widgets
func (ui *CursesUIViewImpl) Initialize(controller *UIController) {
	// No SetChangedFunc with app.Draw() here: it hangs during shutdown when lines
	// arrive after the app stopped. BaseUIView draws after every update.
	ui.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	ui.logView.SetBorder(true).SetTitle(" Logs ")

	ui.pages = tview.NewPages()

	ui.initSessionsMode(controller)
	ui.initTrainingMode(controller)
	ui.initQuizMode(controller)
	ui.initWristMode(controller)

	ui.pages.AddPage(pageSessions, ui.sessionsFlex, true, true)
	ui.pages.AddPage(pageTraining, ui.trainingFlex, true, false)
	ui.pages.AddPage(pageQuiz, ui.quizFlex, true, false)
	ui.pages.AddPage(pageWrist, ui.wristFlex, true, false)

	ui.mainFlex = tview.NewFlex().
		AddItem(ui.pages, 0, 3, true).
		AddItem(ui.logView, 0, 2, false)

	ui.setFocusForCurrentMode()
}

func newInstructions(text string) *tview.TextView {
	instructions := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	instructions.SetText(text)
	return instructions
}

const modeKeysHelp = "[yellow]1[white] Sessions  |  [yellow]2[white] Training  |  [yellow]3[white] Quiz  |  [yellow]4[white] Wrist  |  [yellow]Esc[white] Quit"

func (ui *CursesUIViewImpl) initSessionsMode(controller *UIController) {
	ui.sessionList = tview.NewList().
		ShowSecondaryText(true).
		SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			if ui.rebuilding.Load() {
				return
			}
			ui.logger.Printf("UI: Session chosen: index=%d, name=%s", index, mainText)
			controller.OnSessionSelected(index)
			controller.StartSelectedSession()
		}).
		SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			if ui.rebuilding.Load() {
				return
			}
			controller.OnSessionSelected(index)
		})
	ui.sessionList.SetBorder(true).SetTitle(" Sessions ")

	ui.sessionDetails = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.sessionDetails.SetBorder(true).SetTitle(" Details ")
	ui.updateSessionDetails()

	ui.sessionsTabWidgets = []*tview.Box{ui.sessionList.Box, ui.sessionDetails.Box}

	row := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(ui.sessionList, 0, 1, true).
		AddItem(ui.sessionDetails, 0, 1, false)

	ui.sessionsFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(newInstructions("[yellow]Enter[white] Start session  |  [yellow]Q[white] Quiz on techniques\n"+modeKeysHelp), 2, 0, false).
		AddItem(row, 0, 1, true)
}

// newTranscriptInput creates the field spoken phrases are typed into
func newTranscriptInput(controller *UIController) *tview.InputField {
	input := tview.NewInputField().
		SetLabel("Heard: ").
		SetFieldWidth(0)
	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(input.GetText())
		input.SetText("")
		if text != "" {
			controller.SubmitTranscript(text)
		}
	})
	input.SetBorder(true).SetTitle(" Say it (type and press Enter) ")
	return input
}

func (ui *CursesUIViewImpl) initTrainingMode(controller *UIController) {
	ui.stepPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.stepPanel.SetBorder(true).SetTitle(" Session ")
	ui.UpdatePlayerState(player.State{Phase: player.PhaseIdle})

	ui.trainingInput = newTranscriptInput(controller)
	ui.trainingTabWidgets = []*tview.Box{ui.stepPanel.Box, ui.trainingInput.Box}

	ui.trainingFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(newInstructions("[yellow]Space[white] Next  |  [yellow]T[white] Stop timer  |  [yellow]X[white] End session  |  [yellow]R[white] Retry save  |  [yellow]I[white] Type a phrase\n"+modeKeysHelp), 2, 0, false).
		AddItem(ui.stepPanel, 0, 1, true).
		AddItem(ui.trainingInput, 3, 0, false)
}

func (ui *CursesUIViewImpl) initQuizMode(controller *UIController) {
	ui.quizPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.quizPanel.SetBorder(true).SetTitle(" Quiz ")
	ui.quizPanel.SetText("\n  [gray]No quiz running[white]\n\n  Highlight a session (press 1) and press [yellow]Q[white] to name its techniques.\n")

	ui.quizInput = newTranscriptInput(controller)
	ui.quizTabWidgets = []*tview.Box{ui.quizPanel.Box, ui.quizInput.Box}

	ui.quizFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(newInstructions("[yellow]Q[white] Start quiz  |  [yellow]F[white] Finish and save  |  [yellow]I[white] Type a phrase\n"+modeKeysHelp), 2, 0, false).
		AddItem(ui.quizPanel, 0, 1, true).
		AddItem(ui.quizInput, 3, 0, false)
}

func (ui *CursesUIViewImpl) initWristMode(controller *UIController) {
	ui.wristList = tview.NewList().
		ShowSecondaryText(false).
		SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			devices := ui.model.GetScanDevices()
			if index >= len(devices) {
				ui.logger.Printf("UI: Index %d out of range (have %d wrists)", index, len(devices))
				return
			}
			selected := devices[index]
			ui.logger.Printf("UI: Connecting to %s (%s)", selected.Name, selected.Address)
			controller.WristSelected(selected)
		})
	ui.wristList.SetBorder(true).SetTitle(" Wrists in range ")

	ui.connectedWrist = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.connectedWrist.SetBorder(true).SetTitle(" Connected ")
	ui.connectedWrist.SetText(" [gray]None[white]")

	ui.wristTabWidgets = []*tview.Box{ui.wristList.Box}

	ui.wristFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(newInstructions("[yellow]S[white] Toggle Scan  |  [yellow]Enter[white] Connect  |  [yellow]D[white] Disconnect\n"+modeKeysHelp), 2, 0, false).
		AddItem(ui.wristList, 0, 4, true).
		AddItem(ui.connectedWrist, 3, 0, false)
}

// SetMode switches the UI to the specified mode
func (ui *CursesUIViewImpl) SetMode(mode UIMode) {
	if ui.currentMode == mode {
		return
	}
	ui.currentMode = mode

	switch mode {
	case UIModeSessions:
		ui.pages.SwitchToPage(pageSessions)
	case UIModeTraining:
		ui.pages.SwitchToPage(pageTraining)
	case UIModeQuiz:
		ui.pages.SwitchToPage(pageQuiz)
	case UIModeWrist:
		ui.pages.SwitchToPage(pageWrist)
	}

	ui.setFocusForCurrentMode()
}

// GetCurrentMode returns the currently active UI mode
func (ui *CursesUIViewImpl) GetCurrentMode() UIMode {
	return ui.currentMode
}

func (ui *CursesUIViewImpl) getTabWidgetsForCurrentMode() []*tview.Box {
	switch ui.currentMode {
	case UIModeSessions:
		return ui.sessionsTabWidgets
	case UIModeTraining:
		return ui.trainingTabWidgets
	case UIModeQuiz:
		return ui.quizTabWidgets
	case UIModeWrist:
		return ui.wristTabWidgets
	default:
		return nil
	}
}

func (ui *CursesUIViewImpl) setFocusForCurrentMode() {
	if widgets := ui.getTabWidgetsForCurrentMode(); len(widgets) > 0 {
		ui.app.SetFocus(widgets[0])
	}
}

// transcriptInputForCurrentMode returns the input field of the mode, nil when it has none
func (ui *CursesUIViewImpl) transcriptInputForCurrentMode() *tview.InputField {
	switch ui.currentMode {
	case UIModeTraining:
		return ui.trainingInput
	case UIModeQuiz:
		return ui.quizInput
	default:
		return nil
	}
}

// SetupKeyboardHandlers sets up keyboard event handlers
func (ui *CursesUIViewImpl) SetupKeyboardHandlers(controller *UIController) {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// While typing a phrase every rune belongs to the input field
		if input := ui.transcriptInputForCurrentMode(); input != nil && input.HasFocus() {
			if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyTab {
				ui.setFocusForCurrentMode()
				return nil
			}
			return event
		}

		if event.Key() == tcell.KeyRune {
			if mode, ok := GetUIModeByKey(event.Rune()); ok {
				// The controller updates the model, which notifies us
				controller.OnModeChange(mode)
				return nil
			}
		}

		if event.Key() == tcell.KeyTab {
			widgets := ui.getTabWidgetsForCurrentMode()
			for idx, w := range widgets {
				if w.HasFocus() {
					ui.app.SetFocus(widgets[(idx+1)%len(widgets)])
					break
				}
			}
			return nil
		}

		if event.Key() == tcell.KeyEscape {
			controller.OnEscapeKey()
			return nil
		}

		if event.Key() != tcell.KeyRune {
			return event
		}

		switch ui.currentMode {
		case UIModeSessions:
			if event.Rune() == 'q' {
				if err := controller.StartQuiz(); err != nil {
					ui.logger.Printf("UI: Quiz not started: %v", err)
				}
				return nil
			}
		case UIModeTraining:
			switch event.Rune() {
			case ' ', 'n':
				controller.Next()
				return nil
			case 't':
				controller.StopTimer()
				return nil
			case 'x':
				controller.CancelSession()
				return nil
			case 'r':
				controller.RetrySave()
				return nil
			case 'i':
				ui.app.SetFocus(ui.trainingInput)
				return nil
			}
		case UIModeQuiz:
			switch event.Rune() {
			case 'q':
				if err := controller.StartQuiz(); err != nil {
					ui.logger.Printf("UI: Quiz not started: %v", err)
				}
				return nil
			case 'f':
				if err := controller.FinishQuiz(); err != nil {
					ui.logger.Printf("UI: Quiz results not saved, press F to retry: %v", err)
				}
				return nil
			case 'i':
				ui.app.SetFocus(ui.quizInput)
				return nil
			}
		case UIModeWrist:
			switch event.Rune() {
			case 's':
				controller.ToggleWristScan()
				return nil
			case 'd':
				controller.DisconnectWrist()
				return nil
			}
		}

		return event
	})
}

// GetLogViewHeight returns the visible height of the log view
func (ui *CursesUIViewImpl) GetLogViewHeight() int {
	_, _, _, height := ui.logView.GetInnerRect()
	return height
}

// ClearLogView clears the log view
func (ui *CursesUIViewImpl) ClearLogView() {
	ui.logView.Clear()
}

// WriteLogLine writes a line to the log view
func (ui *CursesUIViewImpl) WriteLogLine(line string) error {
	_, err := fmt.Fprint(ui.logView, tview.Escape(line))
	return err
}

// SetSessions refills the session list and keeps the model's selection highlighted
func (ui *CursesUIViewImpl) SetSessions(view SessionsView) {
	ui.sessions = view

	ui.rebuilding.Store(true)
	ui.sessionList.Clear()
	for _, s := range view.Sessions {
		secondary := fmt.Sprintf("%s, %d of %d items selected", s.PracticeType, s.SelectedItems, s.TotalItems)
		ui.sessionList.AddItem(s.Name, secondary, 0, nil)
	}
	if view.Selected >= 0 && view.Selected < len(view.Sessions) {
		ui.sessionList.SetCurrentItem(view.Selected)
	}
	ui.rebuilding.Store(false)

	ui.updateSessionDetails()
}

func (ui *CursesUIViewImpl) updateSessionDetails() {
	if ui.sessionDetails == nil {
		return
	}

	var b strings.Builder
	session, ok := ui.sessions.SelectedSession()
	if !ok {
		b.WriteString("\n\n  [yellow]Sessions[white]\n\n")
		b.WriteString("  No sessions yet. Run [yellow]dojo-trainer seed[white] or\n")
		b.WriteString("  [yellow]dojo-trainer import <file.toml>[white] to create one.\n")
	} else {
		fmt.Fprintf(&b, "\n  [yellow]%s[white]\n\n", session.Name)
		fmt.Fprintf(&b, "  [gray]Practice:[white] %s\n", session.PracticeType)
		fmt.Fprintf(&b, "  [gray]Items:[white]    %d selected of %d\n", session.SelectedItems, session.TotalItems)
		fmt.Fprintf(&b, "  [gray]Created:[white]  %s\n\n", session.CreatedAt.Local().Format("2006-01-02"))
		b.WriteString("  [green]Press Enter to start this session[white]\n")
	}

	b.WriteString("\n  [gray]Recent history:[white]\n")
	if len(ui.sessions.History) == 0 {
		b.WriteString("    [gray]none[white]\n")
	}
	for _, h := range ui.sessions.History {
		fmt.Fprintf(&b, "    %s  %s  %d steps  %s\n",
			h.CompletedAt.Local().Format("01-02 15:04"),
			tview.Escape(h.SessionName),
			len(h.Records),
			formatDurationMMSS(h.TotalElapsed()))
	}

	ui.sessionDetails.SetText(b.String())
}

// UpdatePlayerState renders the player snapshot on the training page
func (ui *CursesUIViewImpl) UpdatePlayerState(state player.State) {
	if ui.stepPanel == nil {
		return
	}
	ui.stepPanel.SetText(formatPlayerState(state))
}

func formatPlayerState(state player.State) string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case state.Phase == player.PhaseIdle && state.Cancelled:
		fmt.Fprintf(&b, "  [yellow]%s[white] [gray](ended early)[white]\n\n", tview.Escape(state.SessionName))
		fmt.Fprintf(&b, "  %d of %d steps done\n", len(state.History), state.TotalSteps)
		return b.String()
	case state.Phase == player.PhaseIdle:
		b.WriteString("  [gray]No session playing[white]\n\n")
		b.WriteString("  Choose one in Sessions (press 1) and press Enter.\n")
		return b.String()
	case state.Phase == player.PhaseComplete:
		fmt.Fprintf(&b, "  [yellow]%s[white] [green]complete[white]\n\n", tview.Escape(state.SessionName))
		var total float64
		for _, r := range state.History {
			total += r.ElapsedSeconds
		}
		fmt.Fprintf(&b, "  [gray]Steps:[white]   %d\n", len(state.History))
		fmt.Fprintf(&b, "  [gray]Elapsed:[white] %s\n\n", formatDurationMMSS(time.Duration(total*float64(time.Second))))
		switch {
		case state.SaveErr != nil:
			fmt.Fprintf(&b, "  [red]Results not saved:[white] %s\n  Press [yellow]R[white] to retry or [yellow]X[white] to discard.\n", tview.Escape(state.SaveErr.Error()))
		case state.Saved:
			b.WriteString("  [green]Results saved[white]\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "  [yellow]%s[white]", tview.Escape(state.SessionName))
	if state.HasStep {
		fmt.Fprintf(&b, "  step %d/%d", state.StepIndex+1, state.TotalSteps)
	}
	b.WriteString("\n\n")

	if state.Phase == player.PhaseAnnouncing {
		fmt.Fprintf(&b, "  [cyan]Get ready[white]  %ds\n", state.CountdownSeconds())
		return b.String()
	}

	if state.HasStep {
		step := state.Step
		fmt.Fprintf(&b, "  [gray]%s[white]\n", step.Category.DisplayName())
		fmt.Fprintf(&b, "  [yellow::b]%s[white::-]\n\n", tview.Escape(step.Item.Name))
	}

	switch state.Phase {
	case player.PhaseCountingDown:
		fmt.Fprintf(&b, "  [gray]Time left:[white] %ds   ([yellow]T[white] stop timer)\n", state.CountdownSeconds())
	case player.PhasePaused:
		b.WriteString("  [gray]Untimed. Press[white] [yellow]Space[white] [gray]when done[white]\n")
	case player.PhaseInStrikeFlow:
		fmt.Fprintf(&b, "  [gray]Side:[white] %s   [gray]Rep:[white] %d/%d\n", state.StrikeSide, state.StrikeRepetition, state.RepetitionCap)
	case player.PhaseInBlockFlow:
		fmt.Fprintf(&b, "  [gray]Rep:[white] %d/%d\n", state.BlockRepetition, state.RepetitionCap)
	case player.PhaseWaitingForUserAdvance:
		b.WriteString("  [gray]Press[white] [yellow]Space[white] [gray]or the wrist button for the next move[white]\n")
	}

	if next := nextCategoryHint(state); next != "" {
		fmt.Fprintf(&b, "\n  [gray]%s[white]\n", next)
	}
	return b.String()
}

// nextCategoryHint tells how many steps remain after the current one
func nextCategoryHint(state player.State) string {
	remaining := state.TotalSteps - state.StepIndex - 1
	switch {
	case !state.HasStep || remaining < 0:
		return ""
	case remaining == 0:
		return "Last step"
	default:
		return fmt.Sprintf("%d more after this", remaining)
	}
}

// UpdateQuizProgress renders the quiz page
func (ui *CursesUIViewImpl) UpdateQuizProgress(progress quiz.Progress) {
	if ui.quizPanel == nil {
		return
	}
	var b strings.Builder
	b.WriteString("\n")
	if progress.Done {
		fmt.Fprintf(&b, "  [green]Quiz finished[white]: %d known, %d missed\n\n", len(progress.Known), len(progress.Pending))
	} else {
		fmt.Fprintf(&b, "  Name the techniques in any order. [yellow]%d[white] to go.\n\n", len(progress.Pending))
	}
	if progress.LastHeard != "" {
		fmt.Fprintf(&b, "  [gray]Last heard:[white] %q\n\n", tview.Escape(progress.LastHeard))
	}

	b.WriteString("  [gray]Known:[white]\n")
	for _, name := range progress.Known {
		fmt.Fprintf(&b, "    [green]%s[white]\n", tview.Escape(name))
	}
	if progress.Done {
		b.WriteString("\n  [gray]Missed:[white]\n")
	} else {
		b.WriteString("\n  [gray]Pending:[white]\n")
	}
	for _, name := range progress.Pending {
		if progress.Done {
			fmt.Fprintf(&b, "    [red]%s[white]\n", tview.Escape(name))
		} else {
			b.WriteString("    ?\n")
		}
	}
	ui.quizPanel.SetText(b.String())
}

// SetScanDeviceList updates the wrist scan list, keeping the highlighted entry
func (ui *CursesUIViewImpl) SetScanDeviceList(devices []string) {
	currentSelectionIndex := ui.wristList.GetCurrentItem()

	var currentSelectionText *string
	if currentSelectionIndex < ui.wristList.GetItemCount() {
		main, _ := ui.wristList.GetItemText(currentSelectionIndex)
		currentSelectionText = &main
	}

	ui.wristList.Clear()

	selectedIdx := -1
	for i, dev := range devices {
		if currentSelectionText != nil && *currentSelectionText == dev {
			selectedIdx = i
		}
		ui.wristList.AddItem(dev, "", 0, nil)
	}
	if selectedIdx > -1 {
		ui.wristList.SetCurrentItem(selectedIdx)
	}
}

// SetConnectedWrist updates the connected wrist display
func (ui *CursesUIViewImpl) SetConnectedWrist(device *UIDeviceModel) {
	if device == nil {
		ui.connectedWrist.SetText(" [gray]None[white]")
		return
	}
	ui.connectedWrist.SetText(fmt.Sprintf(" [green]●[white] %s (%s)", tview.Escape(device.Name), device.Address))
}

// Draw refreshes/redraws the UI
func (ui *CursesUIViewImpl) Draw() error {
	ui.app.Draw()
	return nil
}

// Run starts the UI and blocks until it exits
func (ui *CursesUIViewImpl) Run() error {
	// SetRoot must be called before setting focus, otherwise focus may be reset
	ui.app.SetRoot(ui.mainFlex, true)
	ui.setFocusForCurrentMode()
	return ui.app.Run()
}

// Stop stops the UI framework
func (ui *CursesUIViewImpl) Stop() {
	ui.app.Stop()
}

// formatDurationMMSS formats a duration as MM:SS
func formatDurationMMSS(d time.Duration) string {
	totalSeconds := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}

var _ UIViewImpl = (*CursesUIViewImpl)(nil)
