// Package vault provides the file primitives habitvault's store runs on: a
// note index, scoped read/write/create/delete/rename keyed by normalized
// vault-relative paths, and a change-notification watcher.
//
// Paths are always slash-separated and relative to the vault root, e.g.
// "Habits/Read.md". NormalizePath produces that form.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// NoteExt is the extension of note-like files.
const NoteExt = ".md"

// Vault is the host file interface the store consumes.
type Vault interface {
	// MarkdownFiles lists every note in the vault as normalized paths.
	MarkdownFiles() ([]string, error)

	// Exists reports whether a regular file exists at p.
	Exists(p string) (bool, error)

	// Read returns the text content of the file at p.
	Read(p string) (string, error)

	// Create writes a new file. It fails with an error matching os.ErrExist
	// if something already exists at p.
	Create(p, content string) error

	// Modify replaces the content of an existing file. It fails with an
	// error matching os.ErrNotExist if there is no file at p.
	Modify(p, content string) error

	// Delete removes the file at p.
	Delete(p string) error

	// Rename moves the file at oldPath to newPath. It fails with an error
	// matching os.ErrExist if newPath is taken.
	Rename(oldPath, newPath string) error

	// CreateFolder creates the folder at p and any missing parents. It
	// fails with an error matching os.ErrExist if p already exists.
	CreateFolder(p string) error
}

// FSVault implements Vault on an afero file system. The file system's root
// is the vault root.
type FSVault struct {
	fs afero.Fs
}

// New returns a vault over fsys.
func New(fsys afero.Fs) *FSVault {
	return &FSVault{fs: fsys}
}

// NewOS returns a vault rooted at dir on the local disk.
func NewOS(dir string) *FSVault {
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// fsPath maps a vault path to the path used on the afero file system.
func fsPath(p string) string {
	n := NormalizePath(p)
	if n == "/" {
		return "/"
	}
	return "/" + n
}

// MarkdownFiles implements Vault.MarkdownFiles. Hidden folders such as
// .obsidian or .git are skipped. The result is sorted.
func (v *FSVault) MarkdownFiles() ([]string, error) {
	var files []string
	err := afero.Walk(v.fs, "/", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if info != nil && info.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			if p != "/" && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, NoteExt) {
			files = append(files, NormalizePath(p))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Exists implements Vault.Exists.
func (v *FSVault) Exists(p string) (bool, error) {
	info, err := v.fs.Stat(fsPath(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Read implements Vault.Read.
func (v *FSVault) Read(p string) (string, error) {
	data, err := afero.ReadFile(v.fs, fsPath(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Create implements Vault.Create.
func (v *FSVault) Create(p, content string) error {
	f, err := v.fs.OpenFile(fsPath(p), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	return writeAndClose(f, content)
}

// Modify implements Vault.Modify.
func (v *FSVault) Modify(p, content string) error {
	f, err := v.fs.OpenFile(fsPath(p), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	return writeAndClose(f, content)
}

// Delete implements Vault.Delete.
func (v *FSVault) Delete(p string) error {
	return v.fs.Remove(fsPath(p))
}

// Rename implements Vault.Rename.
func (v *FSVault) Rename(oldPath, newPath string) error {
	if _, err := v.fs.Stat(fsPath(newPath)); err == nil {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: os.ErrExist}
	}
	if dir := path.Dir(NormalizePath(newPath)); dir != "." {
		if err := v.fs.MkdirAll(fsPath(dir), 0755); err != nil {
			return err
		}
	}
	return v.fs.Rename(fsPath(oldPath), fsPath(newPath))
}

// CreateFolder implements Vault.CreateFolder.
func (v *FSVault) CreateFolder(p string) error {
	if _, err := v.fs.Stat(fsPath(p)); err == nil {
		return &os.PathError{Op: "mkdir", Path: p, Err: os.ErrExist}
	}
	return v.fs.MkdirAll(fsPath(p), 0755)
}

func writeAndClose(f afero.File, content string) error {
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// NormalizePath converts p to the canonical vault form: forward slashes, no
// duplicate or trailing separators, no leading slash. The vault root is "/".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.ReplaceAll(p, "\u00a0", " ")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// InFolder reports whether the vault path p lies beneath folder. Every path
// is inside the vault root "/".
func InFolder(p, folder string) bool {
	folder = NormalizePath(folder)
	if folder == "/" {
		return true
	}
	return strings.HasPrefix(NormalizePath(p), folder+"/")
}
