package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyLimit int
var historyDetails bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		history, err := a.store.ListHistory(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Println("No finished sessions yet.")
			return nil
		}

		cyanBold := color.New(color.FgCyan, color.Bold).SprintFunc()
		for _, h := range history {
			fmt.Printf("%s  %s  %d steps in %s\n",
				h.CompletedAt.Local().Format("2006-01-02 15:04"),
				cyanBold(h.SessionName),
				len(h.Records),
				h.TotalElapsed().Round(time.Second))
			if !historyDetails {
				continue
			}
			for _, r := range h.Records {
				status := color.GreenString("known")
				if !r.Known {
					status = color.RedString("missed")
				}
				fmt.Printf("    %-10s %-24s %6.1fs  %s\n", r.Category, r.ItemName, r.ElapsedSeconds, status)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of sessions to show")
	historyCmd.Flags().BoolVarP(&historyDetails, "details", "d", false, "list every step of each session")
}
