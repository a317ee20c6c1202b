package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mschirtzinger/habitvault/internal/config"
	"github.com/mschirtzinger/habitvault/internal/store"
	"github.com/mschirtzinger/habitvault/internal/tracker"
	"github.com/mschirtzinger/habitvault/internal/types"
	"github.com/mschirtzinger/habitvault/internal/ui"
	"github.com/mschirtzinger/habitvault/internal/vault"
)

// app carries the global flags and the process environment shared by all
// commands. Tests swap the streams, clock and TTY check.
type app struct {
	configPath string
	vaultDir   string
	folder     string
	verbose    bool
	noColor    bool

	cfg *config.Config

	// logOut is shared by every component logger so one rotating file has
	// one writer.
	logOut io.Writer

	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	now         func() time.Time
	interactive func() bool
}

func newApp() *app {
	return &app{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		now:    time.Now,
		interactive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "habits",
		Short: "Track daily habits in a Markdown vault",
		Long: `habits keeps one Markdown file per habit under a folder of your vault
(default "Habits"). Each file holds the habit's metadata in a frontmatter
header and a "## Completions" log with one line per day.

The files are the source of truth: edit them by hand, sync them, or let
"habits watch" pick up changes as they happen.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.AddGroup(
		&cobra.Group{ID: "track", Title: "Tracking:"},
		&cobra.Group{ID: "manage", Title: "Managing habits:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.habits/config.yaml, then ./.habits/config.yaml)")
	flags.StringVar(&a.vaultDir, "vault", "", "vault directory (overrides vault_dir)")
	flags.StringVar(&a.folder, "folder", "", "habit folder inside the vault (overrides folder)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "print timing and file details")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newListCmd(a),
		newToggleCmd(a),
		newNoteCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newArchiveCmd(a, true),
		newArchiveCmd(a, false),
		newDeleteCmd(a),
		newStatsCmd(a),
		newWatchCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the config and applies the global flag overrides.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.vaultDir != "" {
		cfg.VaultDir = a.vaultDir
	}
	if a.folder != "" {
		cfg.Folder = a.folder
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	if err := a.close(); err != nil {
		return err
	}
	a.logOut = cfg.LogWriter()

	_, noColorEnv := os.LookupEnv("NO_COLOR")
	ui.Init(a.out, a.noColor || noColorEnv || !a.interactive())
	return nil
}

func (a *app) logger(component string) *log.Logger {
	if a.logOut == nil {
		a.logOut = a.cfg.LogWriter()
	}
	return config.Logger(a.logOut, component)
}

// close releases the log file, if one is open.
func (a *app) close() error {
	w, ok := a.logOut.(*lumberjack.Logger)
	a.logOut = nil
	if !ok {
		return nil
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

func (a *app) debugf(format string, args ...any) {
	if a.verbose {
		fmt.Fprintln(a.errOut, ui.Muted(fmt.Sprintf(format, args...)))
	}
}

func (a *app) displayOptions() ui.Options {
	return ui.Options{
		ShowStreaks:        a.cfg.ShowStreaks,
		ShowCompletionRate: a.cfg.ShowCompletionRate,
		WeekStartsOnMonday: a.cfg.WeekStartsOnMonday,
		Suggestions:        a.cfg.Suggestions,
	}
}

// openTracker builds the vault, store and tracker for the configured folder
// and loads every record.
func (a *app) openTracker(ctx context.Context) (*tracker.Tracker, error) {
	root, err := a.cfg.VaultPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault: %w", err)
	}

	start := time.Now()
	s := store.New(vault.NewOS(root), store.Options{
		Root:         a.cfg.Folder,
		DefaultColor: a.cfg.DefaultColor,
		Logger:       a.logger("store"),
		Now:          a.now,
	})
	tr := tracker.New(s, tracker.Options{DefaultColor: a.cfg.DefaultColor, Now: a.now})
	if err := tr.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load habits: %w", err)
	}
	a.debugf("Loaded %d habits from %s/%s in %v", len(tr.Snapshot().Items), root, s.Root(), time.Since(start).Round(time.Millisecond))
	return tr, nil
}

// findHabit resolves the joined args as an ID or a name.
func findHabit(tr *tracker.Tracker, args []string) (types.Item, error) {
	return tr.Find(strings.Join(args, " "))
}

// parseDate resolves a --date value. Empty means today; YYYY-MM-DD is taken
// as is; anything else goes through the natural-language parser ("yesterday",
// "last friday", "3 days ago").
func parseDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.FormatDate(now), nil
	}
	if types.ValidDate(s) {
		return s, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	if r == nil {
		return "", fmt.Errorf("invalid date %q: use YYYY-MM-DD or a phrase like \"yesterday\"", s)
	}
	return types.FormatDate(r.Time), nil
}
