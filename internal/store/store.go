// Package store persists habit records as one Markdown file per item inside
// a vault folder, and rebuilds the whole in-memory collection from those
// files on demand.
//
// Files are the source of truth. LoadAll never writes a record file; Save,
// Delete and Rename touch exactly one file each. Files that cannot be read or
// decoded are skipped with a log line so one hand-edited note never blocks a
// load.
//
// The store performs no locking. Callers that share a Store across
// goroutines serialize access themselves (see internal/tracker).
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mschirtzinger/habitvault/internal/schema"
	"github.com/mschirtzinger/habitvault/internal/types"
	"github.com/mschirtzinger/habitvault/internal/vault"
)

const (
	// DefaultRoot is the vault folder records live in when none is configured.
	DefaultRoot = "Habits"

	// DefaultCreateRetries bounds how often a racing create is retried as a
	// modify.
	DefaultCreateRetries = 1
)

// Options configures a Store.
type Options struct {
	// Root is the vault folder holding record files.
	Root string

	// DefaultColor fills items whose header has no color.
	DefaultColor string

	// Logger receives diagnostics. Defaults to stderr with a "[store] " prefix.
	Logger *log.Logger

	// Now is the clock used for missing createdAt values.
	Now func() time.Time

	// Workers is the number of files decoded in parallel by LoadAll.
	// Zero selects runtime.NumCPU().
	Workers int

	// CreateRetries bounds the modify retries after a create race. Zero
	// selects DefaultCreateRetries; a negative value disables retrying.
	CreateRetries int
}

// Store reads and writes habit records in a vault.
type Store struct {
	vault   vault.Vault
	root    string
	decode  schema.DecodeOptions
	logger  *log.Logger
	workers int
	retries int
}

// New creates a Store over v.
func New(v vault.Vault, opts Options) *Store {
	root := vault.NormalizePath(opts.Root)
	if strings.TrimSpace(opts.Root) == "" {
		root = DefaultRoot
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	retries := opts.CreateRetries
	switch {
	case retries == 0:
		retries = DefaultCreateRetries
	case retries < 0:
		retries = 0
	}

	return &Store{
		vault:   v,
		root:    root,
		decode:  schema.DecodeOptions{DefaultColor: opts.DefaultColor, Now: opts.Now},
		logger:  logger,
		workers: workers,
		retries: retries,
	}
}

// Root returns the normalized folder the store reads and writes.
func (s *Store) Root() string {
	return s.root
}

// Sanitize maps an item name to a file base name by replacing the characters
// \ / : * ? " < > | with "-" and trimming surrounding whitespace.
//
// Distinct names can sanitize to the same base name ("a/b" and "a:b"). Such
// items share one file and the later save wins.
func Sanitize(name string) string {
	return strings.TrimSpace(sanitizer.Replace(name))
}

var sanitizer = strings.NewReplacer(
	`\`, "-",
	"/", "-",
	":", "-",
	"*", "-",
	"?", "-",
	`"`, "-",
	"<", "-",
	">", "-",
	"|", "-",
)

// PathFor returns the vault path of the record file for an item name.
func (s *Store) PathFor(name string) string {
	return vault.NormalizePath(path.Join(s.root, Sanitize(name)+vault.NoteExt))
}

// ensureRoot creates the root folder. An existing folder is not an error.
func (s *Store) ensureRoot() error {
	if s.root == "/" {
		return nil
	}
	if err := s.vault.CreateFolder(s.root); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to create folder %s: %w", s.root, err)
	}
	return nil
}

// loadResult holds the outcome of decoding one file.
type loadResult struct {
	rec *schema.Record
	err error
}

// LoadAll builds a fresh Collection from every record file under the root.
//
// Only a failure to create the root folder, or ctx cancellation, aborts the
// load. Unreadable or undecodable files are logged and skipped. When two
// files carry the same id, the first in path order is kept.
func (s *Store) LoadAll(ctx context.Context) (*types.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}

	files, err := s.vault.MarkdownFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var paths []string
	for _, p := range files {
		if vault.InFolder(p, s.root) {
			paths = append(paths, p)
		}
	}

	results, err := s.loadParallel(ctx, paths)
	if err != nil {
		return nil, err
	}

	c := types.NewCollection()
	seen := make(map[string]string, len(results))
	var skipped int
	for i, r := range results {
		if r.err != nil {
			s.logger.Printf("Skipping %s: %v", paths[i], r.err)
			skipped++
			continue
		}
		if first, dup := seen[r.rec.Item.ID]; dup {
			s.logger.Printf("Skipping %s: duplicate id %s (already loaded from %s)", paths[i], r.rec.Item.ID, first)
			skipped++
			continue
		}
		seen[r.rec.Item.ID] = paths[i]
		c.Items = append(c.Items, r.rec.Item)
		c.Entries = append(c.Entries, r.rec.Entries...)
	}

	if skipped > 0 {
		s.logger.Printf("Loaded %d items from %s (skipped=%d)", len(c.Items), s.root, skipped)
	}
	return c, nil
}

// loadParallel decodes paths on a bounded worker pool. Results are indexed
// like paths, so assembly order does not depend on scheduling.
func (s *Store) loadParallel(ctx context.Context, paths []string) ([]loadResult, error) {
	results := make([]loadResult, len(paths))
	if len(paths) == 0 {
		return results, nil
	}

	workers := min(s.workers, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.loadFile(paths[i])
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) loadFile(p string) loadResult {
	text, err := s.vault.Read(p)
	if err != nil {
		return loadResult{err: fmt.Errorf("read failed: %w", err)}
	}
	fallback := strings.TrimSuffix(path.Base(p), vault.NoteExt)
	rec, err := schema.DecodeRecord(text, fallback, s.decode)
	if err != nil {
		return loadResult{err: err}
	}
	return loadResult{rec: rec}
}

// Save writes the record file for item with its entries. Entries belonging
// to other items are ignored. An existing file at the derived path is
// overwritten in place; otherwise the file is created.
func (s *Store) Save(ctx context.Context, item types.Item, entries []types.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	p := s.PathFor(item.Name)
	if err := s.write(p, schema.EncodeRecord(item, entries)); err != nil {
		return fmt.Errorf("failed to save %s: %w", p, err)
	}
	return nil
}

// write modifies p if it exists and creates it otherwise. A create that
// loses a race to another writer is retried as a modify.
func (s *Store) write(p, content string) error {
	exists, err := s.vault.Exists(p)
	if err != nil {
		return err
	}
	if exists {
		return s.vault.Modify(p, content)
	}

	err = s.vault.Create(p, content)
	if err == nil || !errors.Is(err, os.ErrExist) {
		return err
	}

	for attempt := 1; attempt <= s.retries; attempt++ {
		s.logger.Printf("Create raced for %s, retrying as modify (attempt %d)", p, attempt)
		if err = s.vault.Modify(p, content); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %w", ErrWriteConflict, err)
}

// Delete removes the record file for item. A missing file is not an error.
func (s *Store) Delete(ctx context.Context, item types.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.PathFor(item.Name)
	exists, err := s.vault.Exists(p)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if !exists {
		return nil
	}
	if err := s.vault.Delete(p); err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}

// Rename moves the record file derived from oldName to the path derived from
// newName. It is a no-op when the old file does not exist or both names map
// to the same path. The header is not rewritten; call Save afterwards.
func (s *Store) Rename(ctx context.Context, oldName, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	oldPath, newPath := s.PathFor(oldName), s.PathFor(newName)
	if oldPath == newPath {
		return nil
	}
	exists, err := s.vault.Exists(oldPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", oldPath, err)
	}
	if !exists {
		return nil
	}
	if err := s.vault.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}
