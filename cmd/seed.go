package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lowaak/dojo-trainer/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default session from the built-in catalog when there are no sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		seeded, err := a.store.Seed(cmd.Context())
		if err != nil {
			return err
		}
		if seeded {
			fmt.Printf("Created %q in %s\n", store.DefaultSessionName, a.cfg.DB.Path)
		} else {
			fmt.Println("Sessions already exist, nothing to do.")
		}
		return nil
	},
}
