package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lowaak/dojo-trainer/internal/training"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [name]",
	Short: "List sessions, or show the items of one session in play order",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if len(args) == 1 {
			return showSession(cmd, a, args[0])
		}

		sessions, err := a.store.ListSessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions yet. Run `dojo-trainer seed` or `dojo-trainer import <file>`.")
			return nil
		}
		nameColor := color.New(color.FgCyan, color.Bold).SprintFunc()
		for _, s := range sessions {
			fmt.Printf("%s  %s, %d of %d items selected, created %s\n",
				nameColor(s.Name), s.PracticeType, s.SelectedItems, s.TotalItems, s.CreatedAt.Local().Format("2006-01-02"))
		}
		return nil
	},
}

func showSession(cmd *cobra.Command, a *app, name string) error {
	ctx := cmd.Context()
	def, err := a.store.FindSessionByName(ctx, name)
	if err != nil {
		return err
	}

	header := color.New(color.FgGreen, color.Bold)
	dim := color.New(color.Faint).SprintFunc()
	header.Printf("%s\n", def.Name)
	fmt.Printf("Practice: %s  Randomize: %t  Feet together: %t\n\n", def.PracticeType, def.RandomizeOrder, def.FeetTogetherMode)

	for _, category := range training.SequenceOrder {
		items, err := a.store.LoadItems(ctx, def.ID, category)
		if err != nil {
			return err
		}
		timing := def.Timing[category]
		policy := "untimed"
		if timing.UseTimer {
			policy = timing.Duration.String()
		}
		color.New(color.FgYellow, color.Bold).Printf("%s", category.DisplayName())
		fmt.Printf(" %s\n", dim("("+policy+")"))
		if len(items) == 0 {
			fmt.Println(dim("  none"))
		}
		for i, it := range items {
			mark := color.GreenString("✓")
			if !it.Selected {
				mark = dim("·")
			}
			fmt.Printf("  %s %2d. %s%s\n", mark, i, it.Name, itemDetail(it))
		}
	}
	return nil
}

func itemDetail(it training.Item) string {
	switch {
	case it.Technique != nil && len(it.Technique.Aliases) > 0:
		return color.New(color.Faint).Sprintf("  aka %v", it.Technique.Aliases)
	case it.Strike != nil && it.Strike.RequiresBothSides:
		return color.New(color.Faint).Sprint("  both sides")
	case it.Kata != nil && it.Kata.KataNumber > 0:
		return color.New(color.Faint).Sprintf("  #%d", it.Kata.KataNumber)
	}
	return ""
}
