package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mschirtzinger/habitvault/internal/types"
	"github.com/mschirtzinger/habitvault/internal/vault"
)

// fakeModel counts reloads and can be told to fail.
type fakeModel struct {
	mu      sync.Mutex
	current *types.Collection
	reloads atomic.Int32
	fail    error
	next    func() *types.Collection
}

func (m *fakeModel) Reload(ctx context.Context) (*types.Collection, error) {
	m.reloads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	m.current = m.next()
	return m.current.Clone(), nil
}

func newFakeModel(names ...string) *fakeModel {
	return &fakeModel{
		current: types.NewCollection(),
		next: func() *types.Collection {
			c := types.NewCollection()
			for _, n := range names {
				c.Items = append(c.Items, types.Item{ID: n, Name: n})
			}
			return c
		},
	}
}

func testConfig(debounce time.Duration) *Config {
	return &Config{
		DebounceInterval: debounce,
		Logger:           log.New(io.Discard, "", 0),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		model   Reloader
		root    string
		config  *Config
		wantErr bool
	}{
		{name: "valid", model: newFakeModel(), root: "Habits", config: testConfig(0)},
		{name: "nil config uses defaults", model: newFakeModel(), root: "Habits"},
		{name: "nil model", root: "Habits", wantErr: true},
		{name: "empty root", model: newFakeModel(), root: "  ", wantErr: true},
		{name: "negative debounce", model: newFakeModel(), root: "Habits", config: testConfig(-time.Second), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.model, tt.root, tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && d.config.DebounceInterval < 0 {
				t.Error("negative debounce accepted")
			}
		})
	}
}

func TestInScope(t *testing.T) {
	d, err := New(newFakeModel(), "Habits/", testConfig(0))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	tests := []struct {
		name string
		ev   vault.Event
		want bool
	}{
		{"create under root", vault.Event{Op: vault.OpCreate, Path: "Habits/Read.md"}, true},
		{"modify nested", vault.Event{Op: vault.OpModify, Path: "Habits/Daily/Read.md"}, true},
		{"delete under root", vault.Event{Op: vault.OpDelete, Path: "Habits/Read.md"}, true},
		{"non-note file", vault.Event{Op: vault.OpModify, Path: "Habits/data.json"}, false},
		{"other folder", vault.Event{Op: vault.OpModify, Path: "Journal/Read.md"}, false},
		{"prefix lookalike", vault.Event{Op: vault.OpCreate, Path: "HabitsOld/Read.md"}, false},
		{"root folder itself", vault.Event{Op: vault.OpDelete, Path: "Habits"}, false},
		{"rename into root", vault.Event{Op: vault.OpRename, OldPath: "Inbox/Read.md", Path: "Habits/Read.md"}, true},
		{"rename out of root", vault.Event{Op: vault.OpRename, OldPath: "Habits/Read.md", Path: "Archive/Read.md"}, true},
		{"rename old side only", vault.Event{Op: vault.OpRename, OldPath: "Habits/Read.md"}, true},
		{"rename elsewhere", vault.Event{Op: vault.OpRename, OldPath: "Inbox/A.md", Path: "Inbox/B.md"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.InScope(tt.ev); got != tt.want {
				t.Errorf("InScope(%+v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}

func TestHandleEvent_SynchronousReload(t *testing.T) {
	model := newFakeModel("a", "b")
	d, err := New(model, "Habits", testConfig(0))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	var got []*types.Collection
	d.OnReload(func(c *types.Collection) { got = append(got, c) })

	d.HandleEvent(vault.Event{Op: vault.OpModify, Path: "Journal/today.md"})
	if n := model.reloads.Load(); n != 0 {
		t.Fatalf("out-of-scope event triggered %d reloads", n)
	}

	d.HandleEvent(vault.Event{Op: vault.OpModify, Path: "Habits/a.md"})
	if n := model.reloads.Load(); n != 1 {
		t.Fatalf("expected 1 reload, got %d", n)
	}
	if len(got) != 1 || len(got[0].Items) != 2 {
		t.Fatalf("listener not called with the new snapshot: %+v", got)
	}
}

func TestReload_FailureKeepsPreviousAndSkipsListeners(t *testing.T) {
	model := newFakeModel("a")
	d, err := New(model, "Habits", testConfig(0))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	var calls int
	d.OnReload(func(*types.Collection) { calls++ })

	if err := d.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	before := model.current

	boom := errors.New("disk on fire")
	model.fail = boom

	err = d.Reload(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Reload() error = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("listeners called %d times, want 1", calls)
	}
	if model.current != before {
		t.Error("failed reload replaced the collection")
	}

	// HandleEvent swallows the failure.
	d.HandleEvent(vault.Event{Op: vault.OpDelete, Path: "Habits/a.md"})
	if calls != 1 {
		t.Errorf("listeners called after failed reload")
	}
}

func TestStart_DebouncesBursts(t *testing.T) {
	model := newFakeModel("a")
	d, err := New(model, "Habits", testConfig(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	reloaded := make(chan struct{}, 10)
	d.OnReload(func(*types.Collection) { reloaded <- struct{}{} })

	events := make(chan vault.Event)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx, events, nil) }()

	for i := 0; i < 5; i++ {
		events <- vault.Event{Op: vault.OpModify, Path: "Habits/a.md"}
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for debounced reload")
	}

	// No further reloads for the same burst.
	select {
	case <-reloaded:
		t.Error("burst produced more than one reload")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}

	if n := model.reloads.Load(); n != 1 {
		t.Errorf("expected 1 reload, got %d", n)
	}
}

func TestStart_StopUnblocks(t *testing.T) {
	d, err := New(newFakeModel(), "Habits", testConfig(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background(), nil, nil) }()

	time.Sleep(20 * time.Millisecond)
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Stop")
	}
}

func TestStart_TinyDebounce(t *testing.T) {
	d, err := New(newFakeModel("a"), "Habits", testConfig(time.Nanosecond))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	reloaded := make(chan struct{}, 10)
	d.OnReload(func(*types.Collection) { reloaded <- struct{}{} })

	events := make(chan vault.Event)
	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background(), events, nil) }()

	events <- vault.Event{Op: vault.OpModify, Path: "Habits/a.md"}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for reload")
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Stop")
	}
}
