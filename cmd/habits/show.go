package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/habitvault/internal/ui"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "show <habit>",
		Aliases: []string{"history"},
		GroupID: "track",
		Short:   "Show a habit's history and stats",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			item, err := findHabit(tr, args)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, ui.RenderHistory(tr.Snapshot(), item, a.now(), a.displayOptions()))
			return nil
		},
	}
}
