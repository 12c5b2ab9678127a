package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.toml>...",
	Short: "Import session definitions from TOML files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, path := range args {
			def, err := a.store.ImportSessionFile(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			a.sink.Logger().Printf("Store: Imported %q from %s", def.Name, path)
			fmt.Printf("%s %s\n", color.GreenString("Imported"), def.Name)
		}
		return nil
	},
}
