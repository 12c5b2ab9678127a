package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lowaak/dojo-trainer/internal/matcher"
	"github.com/lowaak/dojo-trainer/internal/quiz"
	"github.com/lowaak/dojo-trainer/internal/training"
)

var sessionName string

var matchCmd = &cobra.Command{
	Use:   "match <phrase>...",
	Short: "Show which technique of a session a spoken phrase would be matched to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		techniques, err := loadTechniques(cmd.Context(), a, sessionName)
		if err != nil {
			return err
		}
		candidates := make([]matcher.Candidate, len(techniques))
		for i, it := range techniques {
			candidates[i] = matcher.Candidate{Name: it.Name, Aliases: it.Aliases()}
		}

		phrase := strings.Join(args, " ")
		m, ok := matcher.New(a.cfg.Matcher.Threshold).FindClosestMatch(phrase, candidates, true)
		if !ok {
			fmt.Printf("%s %q matches no technique within distance %d\n", color.RedString("✗"), phrase, a.cfg.Matcher.Threshold)
			return nil
		}
		via := ""
		if !strings.EqualFold(m.Text, m.Candidate.Name) {
			via = color.New(color.Faint).Sprintf(" (via %q)", m.Text)
		}
		fmt.Printf("%s %q -> %s%s, distance %d\n", color.GreenString("✓"), phrase, color.CyanString(m.Candidate.Name), via, m.Distance)
		return nil
	},
}

var aliasCmd = &cobra.Command{
	Use:   "alias <technique> <heard phrase>...",
	Short: "Teach the matcher how the recognizer hears a technique name",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		techniques, err := loadTechniques(ctx, a, sessionName)
		if err != nil {
			return err
		}
		var target *training.Item
		for i := range techniques {
			if strings.EqualFold(techniques[i].Name, args[0]) {
				target = &techniques[i]
			}
		}
		if target == nil {
			return fmt.Errorf("no technique named %q in the session", args[0])
		}

		heard := strings.Join(args[1:], " ")
		result, err := quiz.NewCalibrator(a.store, a.cfg.Matcher.Threshold).Calibrate(ctx, *target, techniques, heard)
		var conflict *quiz.ConflictError
		switch {
		case errors.As(err, &conflict):
			return fmt.Errorf("not added, %q already belongs to %s", conflict.Heard, conflict.Other)
		case err != nil:
			return err
		case result == quiz.AlreadyRecognized:
			fmt.Printf("%q is already recognized as %s\n", heard, target.Name)
		default:
			fmt.Printf("%s %q as an alias of %s\n", color.GreenString("Added"), heard, target.Name)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{matchCmd, aliasCmd} {
		cmd.Flags().StringVarP(&sessionName, "session", "s", "", "session name (default \"Kihon Basics\")")
	}
}

// loadTechniques returns the selected techniques of a session in play order
func loadTechniques(ctx context.Context, a *app, name string) ([]training.Item, error) {
	sessionID, err := a.findSession(ctx, name)
	if err != nil {
		return nil, err
	}
	techniques, err := a.store.LoadSelectedItems(ctx, sessionID, training.CategoryTechnique)
	if err != nil {
		return nil, err
	}
	if len(techniques) == 0 {
		return nil, errors.New("the session has no selected techniques")
	}
	return techniques, nil
}
