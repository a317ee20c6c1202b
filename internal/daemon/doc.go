// Package daemon keeps the in-memory habit collection in step with the vault.
//
// Every in-scope change (a note created, modified or deleted under the
// records folder, or a rename whose old or new path is under it) triggers an
// unconditional full reload. There is no incremental patching: the whole
// collection is rebuilt from files and swapped in, then listeners are told.
//
// # Usage
//
//	fw, err := vault.NewFileWatcher()
//	if err != nil {
//	    return err
//	}
//	defer fw.Stop()
//	if err := fw.Start(vaultDir); err != nil {
//	    return err
//	}
//
//	d, err := daemon.New(tracker, "Habits", daemon.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	d.OnReload(func(c *types.Collection) {
//	    fmt.Printf("%d habits\n", len(c.Items))
//	})
//	return d.Start(ctx, fw.Events(), fw.Errors())
//
// Hosts that deliver their own notifications call HandleEvent directly.
//
// # Debouncing
//
// Editors often write a file several times in a row. Events arriving within
// Config.DebounceInterval of each other coalesce into a single reload, which
// runs once the vault has been quiet for the interval. A zero interval
// disables the queue and reloads inside HandleEvent.
//
// # Failures
//
// A failed reload is logged and otherwise ignored. The previous collection
// stays in place and listeners are not called, so a transient read error
// never wipes the model.
package daemon
