package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mschirtzinger/habitvault/internal/cache"
	"github.com/mschirtzinger/habitvault/internal/schema"
	"github.com/mschirtzinger/habitvault/internal/types"
)

var fixedNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.Local)

type testEnv struct {
	app   *app
	vault string
	out   *bytes.Buffer
	cwd   string
}

// newTestEnv isolates HOME and the working directory and returns an app
// that writes into buffers.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cwd := t.TempDir()
	t.Chdir(cwd)

	out := &bytes.Buffer{}
	a := &app{
		in:          strings.NewReader(""),
		out:         out,
		errOut:      &bytes.Buffer{},
		now:         func() time.Time { return fixedNow },
		interactive: func() bool { return false },
	}
	t.Cleanup(func() { _ = a.close() })
	return &testEnv{app: a, vault: t.TempDir(), out: out, cwd: cwd}
}

func (e *testEnv) run(args ...string) (string, error) {
	e.out.Reset()
	cmd := newRootCmd(e.app)
	cmd.SetArgs(append([]string{"--vault", e.vault}, args...))
	err := cmd.Execute()
	return e.out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(args...)
	require.NoError(t, err, "habits %s", strings.Join(args, " "))
	return out
}

func (e *testEnv) record(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.vault, rel))
	require.NoError(t, err)
	return string(data)
}

func TestAddToggleListShow(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "add", "Read", "-d", "20 pages")
	assert.Contains(t, out, "Added Read")

	rec := env.record(t, "Habits/Read.md")
	assert.Contains(t, rec, "name: Read")
	assert.Contains(t, rec, "description: 20 pages")
	assert.Contains(t, rec, "_No completions yet. Start tracking today!_")

	out = env.mustRun(t, "toggle", "Read")
	assert.Contains(t, out, "Read done on 2024-01-10")
	assert.Contains(t, env.record(t, "Habits/Read.md"), "- 2024-01-10 ✓")

	out = env.mustRun(t, "list")
	assert.Contains(t, out, "Read")
	assert.Contains(t, out, "1 of 1 habits completed (100%)")

	out = env.mustRun(t, "show", "read")
	assert.Contains(t, out, "History: Read")
	assert.Contains(t, out, "Last 7 Weeks")

	out = env.mustRun(t, "toggle", "Read")
	assert.Contains(t, out, "Read not done on 2024-01-10")
	assert.Contains(t, env.record(t, "Habits/Read.md"), "- 2024-01-10 ✗")
}

func TestToggleNaturalDate(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "Walk")

	out := env.mustRun(t, "toggle", "Walk", "--date", "yesterday")
	assert.Contains(t, out, "2024-01-09")
	assert.Contains(t, env.record(t, "Habits/Walk.md"), "- 2024-01-09 ✓")

	_, err := env.run("toggle", "Walk", "--date", "whenever it suits")
	assert.Error(t, err)
}

func TestNote(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "Run")

	out := env.mustRun(t, "note", "Run", "knee", "hurt", "--date", "2024-01-08")
	assert.Contains(t, out, "Noted Run on 2024-01-08")
	assert.Contains(t, env.record(t, "Habits/Run.md"), "- 2024-01-08 ✗ knee hurt")
}

func TestEditRenamesFile(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "Read")
	env.mustRun(t, "toggle", "Read")

	_, err := env.run("edit", "Read")
	require.Error(t, err, "edit without flags should fail")

	env.mustRun(t, "edit", "Read", "--name", "Read more", "--color", "#ff8800")

	_, err = os.Stat(filepath.Join(env.vault, "Habits", "Read.md"))
	assert.True(t, os.IsNotExist(err), "old record should be gone")

	rec := env.record(t, "Habits/Read more.md")
	assert.Contains(t, rec, "name: Read more")
	assert.Contains(t, rec, "color: #ff8800")
	assert.Contains(t, rec, "- 2024-01-10 ✓", "history survives a rename")

	_, err = env.run("edit", "Read more", "--color", "orange")
	assert.Error(t, err)
}

func TestArchive(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "Old habit")
	env.mustRun(t, "add", "Walk")

	env.mustRun(t, "archive", "Old", "habit")
	assert.Contains(t, env.record(t, "Habits/Old habit.md"), "archived: true")

	assert.NotContains(t, env.mustRun(t, "list"), "Old habit")
	assert.Contains(t, env.mustRun(t, "list", "--archived"), "Old habit")

	env.mustRun(t, "unarchive", "Old habit")
	assert.Contains(t, env.mustRun(t, "list"), "Old habit")
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "Read")

	out := env.mustRun(t, "delete", "Read", "--yes")
	assert.Contains(t, out, "Deleted Read")

	_, err := os.Stat(filepath.Join(env.vault, "Habits", "Read.md"))
	assert.True(t, os.IsNotExist(err))

	_, err = env.run("toggle", "Read")
	assert.ErrorContains(t, err, "habit not found")
}

func TestAddRequiresNameWithoutTerminal(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("add")
	assert.ErrorContains(t, err, "habit name required")
}

func TestListEmptyShowsSuggestions(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "list")
	assert.Contains(t, out, "No habits yet.")
	assert.Contains(t, out, "Exercise for 30 minutes")

	info, err := os.Stat(filepath.Join(env.vault, "Habits"))
	require.NoError(t, err, "listing creates the habit folder")
	assert.True(t, info.IsDir())
}

func TestFolderFlag(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "--folder", "Routines", "add", "Stretch")
	assert.Contains(t, env.record(t, "Routines/Stretch.md"), "name: Stretch")

	// The default folder does not see it.
	assert.NotContains(t, env.mustRun(t, "list"), "Stretch")
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "Read")
	env.mustRun(t, "toggle", "Read")
	env.mustRun(t, "toggle", "Read", "--date", "2023-11-01")

	out := env.mustRun(t, "stats", "--since", "2024-01-01")
	assert.Contains(t, out, "Read")
	assert.Contains(t, out, "SINCE 2024-01-01")
	assert.Contains(t, out, "2024-01-10")

	db, err := cache.Open(filepath.Join(env.vault, ".habits", "cache.db"))
	require.NoError(t, err)
	defer db.Close()
	rows, err := db.ItemStats(context.Background(), "2024-01-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Total)
	assert.Equal(t, 1, rows[0].Since)
}

func TestStatsForOneHabit(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "Read")
	env.mustRun(t, "add", "Walk")
	env.mustRun(t, "toggle", "Read")
	env.mustRun(t, "note", "Read", "rest", "day", "--date", "2024-01-09")

	out := env.mustRun(t, "stats", "read")
	assert.Contains(t, out, "Read")
	assert.NotContains(t, out, "Walk")
	assert.Contains(t, out, "Recent Entries")
	assert.Contains(t, out, "2024-01-10")
	assert.Contains(t, out, "rest day")

	_, err := env.run("stats", "Swim")
	assert.ErrorContains(t, err, "not found")
}

func TestConfigInitAndShow(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "config", "init")
	path := filepath.Join(env.cwd, ".habits", "config.yaml")
	assert.Contains(t, out, path)
	_, err := os.Stat(path)
	require.NoError(t, err)

	_, err = env.run("config", "init")
	assert.Error(t, err, "second init without --force")
	env.mustRun(t, "config", "init", "--force")

	out = env.mustRun(t, "--folder", "Routines", "config", "show")
	assert.Contains(t, out, "folder: Routines")
	assert.Contains(t, out, "default_color:")
}

func TestInvalidConfigFails(t *testing.T) {
	env := newTestEnv(t)
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("default_color: blue\n"), 0644))

	_, err := env.run("--config", bad, "list")
	assert.ErrorContains(t, err, "invalid config")
}

func TestLogFileSharedByComponents(t *testing.T) {
	env := newTestEnv(t)
	logPath := filepath.Join(t.TempDir(), "habits.log")
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  file: "+logPath+"\n"), 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(env.vault, "Habits"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.vault, "Habits", "notes.md"), []byte("just prose\n"), 0644))

	env.mustRun(t, "--config", cfgPath, "list")

	w, ok := env.app.logOut.(*lumberjack.Logger)
	require.True(t, ok, "log writer is %T", env.app.logOut)
	assert.Same(t, w, env.app.logger("store").Writer())
	assert.Same(t, w, env.app.logger("daemon").Writer())

	require.NoError(t, env.app.close())
	assert.Nil(t, env.app.logOut)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[store] Skipping")
	assert.Contains(t, string(data), "notes.md")
}

func TestExportImport(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "Read")
	env.mustRun(t, "toggle", "Read", "--date", "2024-01-05")

	dump := filepath.Join(t.TempDir(), "habits.json")
	out := env.mustRun(t, "export", "-o", dump)
	assert.Contains(t, out, "Exported 1 habits, 1 entries")

	// Into a second folder of the same vault.
	out = env.mustRun(t, "--folder", "Copy", "import", dump)
	assert.Contains(t, out, "Imported 1 habits with 1 entries")
	assert.Contains(t, env.record(t, "Copy/Read.md"), "- 2024-01-05 ✓")

	out = env.mustRun(t, "--folder", "Copy", "import", dump)
	assert.Contains(t, out, "Skipped 1 existing habits")

	out = env.mustRun(t, "export")
	assert.Contains(t, out, `"habits"`)
	assert.Contains(t, out, `"date": "2024-01-05"`)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "2024-01-10"},
		{in: "2023-02-28", want: "2023-02-28"},
		{in: "today", want: "2024-01-10"},
		{in: "yesterday", want: "2024-01-09"},
		{in: "3 days ago", want: "2024-01-07"},
		{in: "2023-02-30", wantErr: true},
		{in: "no idea", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in, fixedNow)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWatchMirrorsChangesIntoCache(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "Read")

	a := env.app
	a.vaultDir = env.vault
	require.NoError(t, a.setup(nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.runWatch(ctx, false, 0) }()

	cachePath := filepath.Join(env.vault, ".habits", "cache.db")
	itemCount := func() int {
		db, err := cache.Open(cachePath)
		if err != nil {
			return -1
		}
		defer db.Close()
		n, err := db.ItemCount(context.Background())
		if err != nil {
			return -1
		}
		return n
	}
	require.Eventually(t, func() bool { return itemCount() == 1 }, 5*time.Second, 50*time.Millisecond)

	// Give the watcher a moment to register the folder.
	time.Sleep(200 * time.Millisecond)

	run := types.Item{ID: "run-1", Name: "Run", CreatedAt: "2024-01-01T00:00:00.000Z"}
	content := schema.EncodeRecord(run, []types.Entry{{ItemID: run.ID, Date: "2024-01-09", Completed: true}})
	require.NoError(t, os.WriteFile(filepath.Join(env.vault, "Habits", "Run.md"), []byte(content), 0644))

	require.Eventually(t, func() bool { return itemCount() == 2 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
