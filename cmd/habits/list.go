package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/habitvault/internal/ui"
)

func newListCmd(a *app) *cobra.Command {
	var archived bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		GroupID: "track",
		Short:   "Show today's habits",
		Long: `Show every active habit with today's mark and the current week.

Streaks and completion rates follow show_streaks and show_completion_rate
in the config; the week layout follows week_starts_on_monday.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, ui.RenderList(tr.Snapshot(), a.now(), a.displayOptions(), archived))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&archived, "archived", "a", false, "include archived habits")
	return cmd
}
