package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lowaak/dojo-trainer/internal/config"
	"github.com/lowaak/dojo-trainer/internal/logging"
	"github.com/lowaak/dojo-trainer/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "dojo-trainer",
	Short: "Karate training sessions with a wrist remote and spoken cues",
	Long: "dojo-trainer plays karate training sessions step by step: techniques, exercises,\n" +
		"katas, kicks, blocks and strikes, announced aloud and mirrored on a wrist device.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd)
	},
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(aliasCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// app is what every command needs: the resolved config, the log sink and the store
type app struct {
	cfg   *config.Config
	sink  *logging.Sink
	store *store.Store
}

// openApp loads the configuration from the command's flags and opens the log and the database
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	sink, err := logging.New(cfg.Log, logging.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening log %s: %w", cfg.Log.File, err)
	}
	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return &app{cfg: cfg, sink: sink, store: st}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.sink.Logger().Printf("Store: Close failed: %v", err)
	}
	_ = a.sink.Close()
}

// findSession resolves a session by name, or the default session when name is empty
func (a *app) findSession(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = store.DefaultSessionName
	}
	def, err := a.store.FindSessionByName(ctx, name)
	if err != nil {
		return "", err
	}
	return def.ID, nil
}
