package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/habitvault/internal/cache"
	"github.com/mschirtzinger/habitvault/internal/ui"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		since     string
		noRefresh bool
	)

	cmd := &cobra.Command{
		Use:     "stats [habit]",
		GroupID: "track",
		Short:   "Show completion totals for every habit",
		Long: `Show completion totals per habit from the SQLite cache
(cache.path, default <vault>/.habits/cache.db).

The cache is refreshed from the record files first unless --no-refresh is
given, in which case it shows what "habits watch" last mirrored.

With a habit name or id, only that habit's row is shown, followed by its
most recent cached entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if since == "" {
				since = "30 days ago"
			}
			from, err := parseDate(since, a.now())
			if err != nil {
				return err
			}

			path, err := a.cfg.CachePath()
			if err != nil {
				return err
			}
			db, err := a.openCacheAt(ctx, path)
			if err != nil {
				return err
			}
			defer db.Close()

			if !noRefresh {
				tr, err := a.openTracker(ctx)
				if err != nil {
					return err
				}
				if err := db.ReplaceCollection(ctx, tr.Snapshot()); err != nil {
					return err
				}
			}

			rows, err := db.ItemStats(ctx, from)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Fprint(a.out, ui.RenderStats(rows, from))
				return nil
			}

			row, err := findRow(rows, strings.Join(args, " "))
			if err != nil {
				return err
			}
			entries, err := db.History(ctx, row.ItemID, ui.HistoryLimit)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, ui.RenderStats([]cache.ItemStat{row}, from))
			fmt.Fprint(a.out, "\n"+ui.RenderLog("Recent Entries", entries, a.now()))
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", `start of the windowed count (default "30 days ago")`)
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "read the cache as is")
	return cmd
}

// findRow matches a cached row by id, then by name ignoring case.
func findRow(rows []cache.ItemStat, nameOrID string) (cache.ItemStat, error) {
	for _, r := range rows {
		if r.ItemID == nameOrID {
			return r, nil
		}
	}
	for _, r := range rows {
		if strings.EqualFold(r.Name, strings.TrimSpace(nameOrID)) {
			return r, nil
		}
	}
	return cache.ItemStat{}, fmt.Errorf("habit %q not found in cache", nameOrID)
}

// openCacheAt opens the cache database and makes sure its schema exists.
func (a *app) openCacheAt(ctx context.Context, path string) (*cache.DB, error) {
	db, err := cache.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.debugf("Cache: %s", path)
	return db, nil
}
