package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lowaak/dojo-trainer/internal/training"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Select, deselect and reorder the items of a session",
}

var itemsSelectCmd = &cobra.Command{
	Use:   "select <session> <category> <item>",
	Short: "Include an item when the session plays",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setItemSelected(cmd, args, true)
	},
}

var itemsDeselectCmd = &cobra.Command{
	Use:   "deselect <session> <category> <item>",
	Short: "Skip an item when the session plays",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setItemSelected(cmd, args, false)
	},
}

var itemsMoveCmd = &cobra.Command{
	Use:   "move <session> <category> <from> <to>",
	Short: "Move an item to another position of its category (positions as shown by `sessions <name>`)",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("from: %w", err)
		}
		to, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("to: %w", err)
		}
		category, err := training.ParseCategory(args[1])
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		def, err := a.store.FindSessionByName(ctx, args[0])
		if err != nil {
			return err
		}
		items, err := a.store.Reorder(ctx, def.ID, category, from, to)
		if err != nil {
			return err
		}
		names := make([]string, len(items))
		for i, it := range items {
			names[i] = it.Name
		}
		fmt.Printf("%s: %s\n", category.DisplayName(), strings.Join(names, ", "))
		return nil
	},
}

func init() {
	itemsCmd.AddCommand(itemsSelectCmd)
	itemsCmd.AddCommand(itemsDeselectCmd)
	itemsCmd.AddCommand(itemsMoveCmd)
}

func setItemSelected(cmd *cobra.Command, args []string, selected bool) error {
	category, err := training.ParseCategory(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	def, err := a.store.FindSessionByName(ctx, args[0])
	if err != nil {
		return err
	}
	items, err := a.store.LoadItems(ctx, def.ID, category)
	if err != nil {
		return err
	}
	for _, it := range items {
		if strings.EqualFold(it.Name, args[2]) {
			if err := a.store.SetSelected(ctx, it.ID, selected); err != nil {
				return err
			}
			state := "deselected"
			if selected {
				state = "selected"
			}
			fmt.Printf("%s %s in %s\n", it.Name, state, def.Name)
			return nil
		}
	}
	return fmt.Errorf("no %s named %q in %s", category, args[2], def.Name)
}
