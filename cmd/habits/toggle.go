package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/habitvault/internal/ui"
)

func newToggleCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:     "toggle <habit>",
		Aliases: []string{"done"},
		GroupID: "track",
		Short:   "Mark a habit done, or undo it",
		Long: `Flip a habit's completion for a day (today unless --date is given).

The habit may be named by ID or by name. --date accepts YYYY-MM-DD or a
phrase such as "yesterday" or "last monday".`,
		Example: `  habits toggle Meditate
  habits toggle "Read for 20 minutes" --date yesterday`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(date, a.now())
			if err != nil {
				return err
			}
			tr, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			item, err := findHabit(tr, args)
			if err != nil {
				return err
			}

			done, err := tr.Toggle(cmd.Context(), item.ID, day)
			if err != nil {
				return err
			}
			if done {
				fmt.Fprintln(a.out, ui.Success(fmt.Sprintf("%s done on %s", item.Name, day)))
			} else {
				fmt.Fprintln(a.out, ui.Muted(fmt.Sprintf("%s not done on %s", item.Name, day)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "day to toggle (default today)")
	return cmd
}

func newNoteCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:     "note <habit> <text>...",
		GroupID: "track",
		Short:   "Attach a note to a day",
		Long: `Attach a note to a habit's entry for a day (today unless --date is given).

A day without an entry gets one that is not marked done. Newlines in the
note are folded into spaces. An empty note clears it.`,
		Example: `  habits note Read "finished chapter 3"
  habits note Run "knee hurt" --date 2024-03-01`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(date, a.now())
			if err != nil {
				return err
			}
			tr, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			item, err := tr.Find(args[0])
			if err != nil {
				return err
			}

			note := strings.Join(args[1:], " ")
			if err := tr.SetNote(cmd.Context(), item.ID, day, note); err != nil {
				return err
			}
			fmt.Fprintln(a.out, ui.Success(fmt.Sprintf("Noted %s on %s", item.Name, day)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "day of the note (default today)")
	return cmd
}
