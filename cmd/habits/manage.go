package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/habitvault/internal/types"
	"github.com/mschirtzinger/habitvault/internal/ui"
)

func newAddCmd(a *app) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:     "add [name]",
		GroupID: "manage",
		Short:   "Add a habit",
		Long: `Add a habit and write its record file.

Without a name on a terminal, a prompt offers the suggestions from the
config.`,
		Example: `  habits add Meditate
  habits add "Read for 20 minutes" -d "fiction counts"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			if strings.TrimSpace(name) == "" {
				if !a.interactive() {
					return errors.New("habit name required")
				}
				var err error
				if name, description, err = promptNewHabit(a.cfg.Suggestions, description); err != nil {
					return err
				}
			}

			tr, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			item, err := tr.Add(cmd.Context(), name, description)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, ui.Success(fmt.Sprintf("Added %s", item.Name)))
			a.debugf("id %s", item.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "one-line description")
	return cmd
}

func promptNewHabit(suggestions []string, description string) (string, string, error) {
	var name string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Habit").
				Placeholder(firstOr(suggestions, "Drink water")).
				Suggestions(suggestions).
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Description").
				Value(&description),
		),
	)
	if err := form.Run(); err != nil {
		return "", "", err
	}
	return name, description, nil
}

func firstOr(list []string, fallback string) string {
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}

func newEditCmd(a *app) *cobra.Command {
	var name, description, color string

	cmd := &cobra.Command{
		Use:     "edit <habit>",
		GroupID: "manage",
		Short:   "Rename or restyle a habit",
		Long: `Change a habit's name, description or color. Renaming moves its record
file.`,
		Example: `  habits edit Read --name "Read daily" --color "#ff8800"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("description") && !flags.Changed("color") {
				return errors.New("nothing to change: use --name, --description or --color")
			}

			tr, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			item, err := findHabit(tr, args)
			if err != nil {
				return err
			}

			if !flags.Changed("name") {
				name = item.Name
			}
			if !flags.Changed("description") {
				description = item.Description
			}
			if !flags.Changed("color") {
				color = item.Color
			}

			updated, err := tr.Update(cmd.Context(), item.ID, name, description, color)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, ui.Success(fmt.Sprintf("Updated %s", updated.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&color, "color", "", "new #RRGGBB color")
	return cmd
}

func newArchiveCmd(a *app, archive bool) *cobra.Command {
	use, short, verb := "archive <habit>", "Hide a habit from the daily list", "Archived"
	if !archive {
		use, short, verb = "unarchive <habit>", "Bring an archived habit back", "Unarchived"
	}

	return &cobra.Command{
		Use:     use,
		GroupID: "manage",
		Short:   short,
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
			if _, err := tr.SetArchived(cmd.Context(), item.ID, archive); err != nil {
				return err
			}
			fmt.Fprintln(a.out, ui.Success(fmt.Sprintf("%s %s", verb, item.Name)))
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <habit>",
		Aliases: []string{"rm"},
		GroupID: "manage",
		Short:   "Delete a habit and its history",
		Long: `Delete a habit's record file. Its whole completion history goes with it.

On a terminal you are asked to confirm unless --yes is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			item, err := findHabit(tr, args)
			if err != nil {
				return err
			}

			if !yes && a.interactive() {
				ok, err := confirmDelete(item)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, ui.Muted("Cancelled"))
					return nil
				}
			}

			if err := tr.Delete(cmd.Context(), item.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, ui.Success(fmt.Sprintf("Deleted %s", item.Name)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation")
	return cmd
}

func confirmDelete(item types.Item) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Delete habit %q?", item.Name)).
		Description("Its completion history is removed too.").
		Affirmative("Delete").
		Negative("Keep").
		Value(&ok).
		Run()
	return ok, err
}
