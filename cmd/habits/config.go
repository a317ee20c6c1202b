package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/habitvault/internal/config"
	"github.com/mschirtzinger/habitvault/internal/ui"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		GroupID: "advanced",
		Short:   "Inspect or create the config file",
		Long: `Config files are YAML, read in this order, later ones winning:
  ~/.habits/config.yaml
  ./.habits/config.yaml
  the file given with --config`,
	}
	cmd.AddCommand(newConfigInitCmd(a), newConfigShowCmd(a))
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var (
		global bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Long: `Write the default configuration to ./.habits/config.yaml, or to
~/.habits/config.yaml with --global. An existing file is kept unless --force
is given.`,
		Args: cobra.NoArgs,
		// The file being created may be the one that fails to load.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ProjectConfigPath()
			if global {
				path = config.GlobalConfigPath()
			}
			if path == "" {
				return fmt.Errorf("cannot determine config location")
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintln(a.out, ui.Success("Wrote "+path))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&global, "global", "g", false, "write the global config instead")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = a.out.Write(data)
			return err
		},
	}
}
