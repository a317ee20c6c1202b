package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/habitvault/internal/daemon"
	"github.com/mschirtzinger/habitvault/internal/dashboard"
	"github.com/mschirtzinger/habitvault/internal/types"
	"github.com/mschirtzinger/habitvault/internal/vault"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		withDashboard bool
		port          int
	)

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "advanced",
		Short:   "Reload habits as their files change",
		Long: `Watch the vault and reload the habit folder whenever a record file is
created, edited, renamed or deleted. Bursts of changes are coalesced
(watch.debounce). Every reload is mirrored into the SQLite cache.

With --dashboard a WebSocket server streams updates to clients:
- item_update: a habit was added, changed, archived or deleted
- reload_complete: the folder was reloaded
- stats: per-habit streaks and completion rates

Clients may send requests on the same socket; failures come back as an
error message:
  {"type":"toggle","data":{"item_id":"<id>","date":"2024-01-02"}}
  {"type":"note","data":{"item_id":"<id>","note":"felt great"}}
An omitted date means today.

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if !cmd.Flags().Changed("port") {
				port = a.cfg.Dashboard.Port
			}
			return a.runWatch(ctx, withDashboard, port)
		},
	}

	cmd.Flags().BoolVar(&withDashboard, "dashboard", false, "serve the WebSocket dashboard")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "dashboard port (default dashboard.port)")
	return cmd
}

// runWatch blocks until ctx is cancelled.
func (a *app) runWatch(ctx context.Context, withDashboard bool, port int) error {
	debounce, err := a.cfg.DebounceInterval()
	if err != nil {
		return err
	}
	root, err := a.cfg.VaultPath()
	if err != nil {
		return err
	}

	tr, err := a.openTracker(ctx)
	if err != nil {
		return err
	}

	cachePath, err := a.cfg.CachePath()
	if err != nil {
		return err
	}
	db, err := a.openCacheAt(ctx, cachePath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.ReplaceCollection(ctx, tr.Snapshot()); err != nil {
		return err
	}

	d, err := daemon.New(tr, a.cfg.Folder, &daemon.Config{
		DebounceInterval: debounce,
		Logger:           a.logger("daemon"),
	})
	if err != nil {
		return err
	}

	cacheLog := a.logger("cache")
	d.OnReload(func(c *types.Collection) {
		if err := db.ReplaceCollection(ctx, c); err != nil {
			cacheLog.Printf("Failed to mirror reload: %v", err)
		}
	})

	if withDashboard {
		server := dashboard.NewServer(&dashboard.Config{Port: port, Logger: a.logger("dashboard")})
		handler := dashboard.NewHandler(server, a.logger("dashboard"))
		handler.Reset(tr.Snapshot())
		d.OnReload(handler.OnReload)
		unsubscribe := tr.Subscribe(handler.OnChange)
		defer unsubscribe()
		handler.Accept(tr)

		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		defer server.Stop()

		fmt.Fprintf(a.out, "Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n", port, port)
	}

	fw, err := vault.NewFileWatcher()
	if err != nil {
		return err
	}
	if err := fw.Start(root); err != nil {
		return err
	}
	defer fw.Stop()

	fmt.Fprintf(a.out, "Watching %s for changes to %s/\n", root, a.cfg.Folder)
	fmt.Fprintln(a.out, "Press Ctrl+C to stop...")

	return d.Start(ctx, fw.Events(), fw.Errors())
}
