package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/dojo-trainer/internal/bt"
	"github.com/lowaak/dojo-trainer/internal/player"
	"github.com/lowaak/dojo-trainer/internal/remote"
	"github.com/lowaak/dojo-trainer/internal/speech"
	"github.com/lowaak/dojo-trainer/internal/store"
	"github.com/lowaak/dojo-trainer/internal/trainer"
)

const (
	mockWristAddress = "D0:00:00:00:00:01"
	mockWristName    = "Dojo Wrist (mock)"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Open the terminal UI to play sessions and connect the wrist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd)
	},
}

func runPlay(cmd *cobra.Command) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.sink.Logger()
	cfg := a.cfg

	seeded, err := a.store.Seed(cmd.Context())
	if err != nil {
		return err
	}
	if seeded {
		logger.Printf("Store: Created the %q session", store.DefaultSessionName)
	}

	var central bt.Central
	if cfg.Wrist.Mock {
		wrist := trainer.NewMockWristDevice(logger, mockWristAddress, mockWristName)
		if err := wrist.Start(fmt.Sprintf("127.0.0.1:%d", cfg.Wrist.MockPort)); err != nil {
			return err
		}
		central = trainer.NewMockCentral(logger, wrist)
	} else {
		central = bt.NewManager(bluetooth.DefaultAdapter, logger, cfg.Wrist.ScanTimeout)
	}
	if err := central.Enable(); err != nil {
		central.Shutdown()
		return fmt.Errorf("enabling bluetooth (use --mock-wrist to run without it): %w", err)
	}
	defer central.Shutdown()

	wristHandler := trainer.NewWristHandler(central, logger, trainer.DefaultWristConnectTimeout)
	notifier := remote.NewNotifier(wristHandler, logger, cfg.Wrist.RemoteTimeout)
	recognizer := speech.NewManualRecognizer()

	var announcer speech.Announcer = speech.NewLogAnnouncer(logger)
	if fields := strings.Fields(cfg.Speech.Command); len(fields) > 0 {
		tts := speech.NewCommandAnnouncer(logger, fields[0], fields[1:], announcer)
		defer tts.Shutdown()
		announcer = tts
	}

	readyCountdown := cfg.Player.ReadyCountdown
	if readyCountdown <= 0 {
		readyCountdown = -1
	}
	sessionPlayer := player.NewPlayer(player.Dependencies{
		Sessions:   a.store,
		Items:      a.store,
		History:    a.store,
		Announcer:  announcer,
		Recognizer: recognizer,
		Remote:     notifier,
	}, player.Options{
		ReadyCountdown: readyCountdown,
		RepetitionCap:  cfg.Player.RepetitionCap,
		Tick:           cfg.Player.Tick,
		MatchThreshold: cfg.Matcher.Threshold,
	}, logger)

	model := trainer.NewUIModel(central, logger, a.sink.UILines(), filepath.Join(cfg.ConfigDir, trainer.UIPrefsFile))
	defer model.Shutdown()

	controller := trainer.NewUIController(trainer.NewUIControllerArg{
		Model:          model,
		Catalog:        a.store,
		Player:         sessionPlayer,
		Wrist:          wristHandler,
		Notifier:       notifier,
		Recognizer:     recognizer,
		Announcer:      announcer,
		MatchThreshold: cfg.Matcher.Threshold,
		Logger:         logger,
	})
	defer controller.Shutdown()

	tviewApp := tview.NewApplication()
	view := trainer.NewCursesUIView(logger, tviewApp, model)
	baseView := trainer.NewBaseUIView(trainer.NewBaseUIViewArg{
		UIViewImpl:   view,
		UIModel:      model,
		UIController: controller,
		Logger:       logger,
	})
	defer baseView.Shutdown()

	if cfg.Wrist.Mock {
		logger.Printf("Mock wrist debug page on http://127.0.0.1:%d", cfg.Wrist.MockPort)
	}
	return baseView.Run()
}
