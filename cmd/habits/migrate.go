package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/habitvault/internal/migrate"
	"github.com/mschirtzinger/habitvault/internal/store"
	"github.com/mschirtzinger/habitvault/internal/ui"
	"github.com/mschirtzinger/habitvault/internal/vault"
)

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "export",
		GroupID: "advanced",
		Short:   "Write all habits and completions as JSON",
		Long: `Write every habit and completion in the folder as one JSON document:

  {"habits": [...], "completions": [...]}

The same document can be read back with "habits import".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = a.out
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			c := tr.Snapshot()
			if err := migrate.WriteData(w, migrate.FromCollection(c)); err != nil {
				return err
			}
			if w != a.out {
				fmt.Fprintln(a.out, ui.Success(fmt.Sprintf("Exported %d habits, %d entries to %s", len(c.Items), len(c.Entries), output)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var opts migrate.Options

	cmd := &cobra.Command{
		Use:     "import <file>",
		GroupID: "advanced",
		Short:   "Create habit records from a JSON export",
		Long: `Create one record per habit in a JSON document written by "habits export"
(or any file of the same {"habits", "completions"} shape).

Habits whose ID is already in the vault, or whose file name is taken, are
skipped unless --overwrite is given. Completions with a bad date, a repeated
date or an unknown habit are dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := migrate.ReadFile(args[0])
			if err != nil {
				return err
			}

			root, err := a.cfg.VaultPath()
			if err != nil {
				return err
			}
			s := store.New(vault.NewOS(root), store.Options{
				Root:         a.cfg.Folder,
				DefaultColor: a.cfg.DefaultColor,
				Logger:       a.logger("store"),
				Now:          a.now,
			})
			opts.Now = a.now

			res, err := migrate.Import(cmd.Context(), s, d, opts)
			if err != nil {
				return err
			}

			verb := "Imported"
			if opts.DryRun {
				verb = "Would import"
			}
			fmt.Fprintln(a.out, ui.Success(fmt.Sprintf("%s %d habits with %d entries", verb, res.Imported, res.Entries)))
			if res.Skipped > 0 {
				fmt.Fprintln(a.out, ui.Muted(fmt.Sprintf("Skipped %d existing habits (use --overwrite to replace)", res.Skipped)))
			}
			if res.Dropped > 0 {
				fmt.Fprintln(a.out, ui.Muted(fmt.Sprintf("Dropped %d completions", res.Dropped)))
			}
			for _, msg := range res.Errors {
				fmt.Fprintln(a.errOut, ui.Error(msg))
			}
			if len(res.Errors) > 0 {
				return fmt.Errorf("%d habits failed to import", len(res.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace existing habits")
	return cmd
}
