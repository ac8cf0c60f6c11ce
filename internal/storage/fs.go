package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
	"github.com/sudo-Harshk/NoteDiscovery/internal/pathguard"
)

const tmpPrefix = ".notes-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the storage root
}

var _ Provider = (*FS)(nil)

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute storage root.
func (f *FS) Root() string { return f.root }

// NormalizeNotePath converts p to a clean slash path carrying the note extension.
func NormalizeNotePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.TrimSpace(p) == "" {
		return ""
	}
	if !strings.HasSuffix(p, models.NoteExt) {
		p += models.NoteExt
	}
	return p
}

// NoteName returns the display name of a note path: its file name without extension.
func NoteName(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// NoteFolder returns the parent folder of a note path, "" for root-level notes.
func NoteFolder(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// notePath resolves a note path, appending the extension when missing.
func (f *FS) notePath(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("%w: empty note path", apperr.ErrInvalidPath)
	}
	return pathguard.Resolve(f.root, NormalizeNotePath(rel))
}

// folderPath resolves a folder path and refuses the root itself.
func (f *FS) folderPath(rel string) (string, error) {
	abs, err := pathguard.Resolve(f.root, rel)
	if err != nil {
		return "", err
	}
	if abs == f.root || strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("%w: storage root is not a folder operand", apperr.ErrInvalidPath)
	}
	return abs, nil
}

func (f *FS) relSlash(abs string) string {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// ListNotes walks the root and returns metadata for every note, newest first.
// Directories whose name starts with "." are reserved and skipped.
func (f *FS) ListNotes() ([]models.NoteInfo, error) {
	var out []models.NoteInfo
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) && p != f.root {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			if p != f.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), models.NoteExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel := f.relSlash(p)
		out = append(out, models.NoteInfo{
			Path:     rel,
			Name:     NoteName(rel),
			Folder:   NoteFolder(rel),
			Modified: info.ModTime(),
			Size:     info.Size(),
			Kind:     models.KindNote,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list notes: %w", err)
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders items by modification time descending, path ascending on ties.
func SortNewestFirst(items []models.NoteInfo) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Modified.Equal(items[j].Modified) {
			return items[i].Modified.After(items[j].Modified)
		}
		return items[i].Path < items[j].Path
	})
}

// ListFolders returns every directory under the root, empty ones included,
// skipping names that start with ".".
func (f *FS) ListFolders() ([]string, error) {
	out := []string{}
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) && p != f.root {
				return nil
			}
			return walkErr
		}
		if !d.IsDir() || p == f.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		out = append(out, f.relSlash(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list folders: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Exists reports whether a note file is present at path.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.notePath(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}

// Read returns the raw bytes of a note.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.notePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isDirErr(abs) {
			return nil, fmt.Errorf("storage: read %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.notePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a note. Its folder stays in place even when left empty.
func (f *FS) Delete(path string) error {
	abs, err := f.notePath(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", path, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", path, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Move renames a note within the root, creating the destination's parents.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.notePath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.notePath(newPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(absOld)
	if err != nil || !info.Mode().IsRegular() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: move %s: %w", oldPath, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	if absOld == absNew {
		return nil
	}
	if _, err := os.Lstat(absNew); err == nil {
		return fmt.Errorf("storage: move to %s: %w", newPath, apperr.ErrConflict)
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}

// CreateFolder creates a directory and its parents. Existing folders succeed;
// a file in the way is ErrAlreadyExists.
func (f *FS) CreateFolder(path string) error {
	abs, err := f.folderPath(path)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(abs); statErr == nil && !info.IsDir() {
		return fmt.Errorf("storage: create folder %s: %w", path, apperr.ErrAlreadyExists)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("storage: create folder %s: %w", path, err)
	}
	return nil
}

// MoveFolder renames a directory. There is no merge: an existing destination
// is a conflict. Emptied parents of the source are left in place.
func (f *FS) MoveFolder(oldPath, newPath string) error {
	absOld, err := f.folderPath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.folderPath(newPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(absOld)
	if err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: move folder %s: %w", oldPath, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: move folder %s: %w", oldPath, err)
	}
	if _, err := os.Lstat(absNew); err == nil {
		return fmt.Errorf("storage: move folder to %s: %w", newPath, apperr.ErrConflict)
	}
	if pathguard.IsContained(absOld, absNew) {
		return fmt.Errorf("%w: cannot move %s into itself", apperr.ErrInvalidPath, oldPath)
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for folder move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move folder: %w", err)
	}
	return nil
}

// RenameFolder renames a directory; it has the same contract as MoveFolder.
func (f *FS) RenameFolder(oldPath, newPath string) error {
	return f.MoveFolder(oldPath, newPath)
}

// DeleteFolder recursively removes a directory. There is no undo.
func (f *FS) DeleteFolder(path string) error {
	abs, err := f.folderPath(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete folder %s: %w", path, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete folder %s: %w", path, err)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("storage: delete folder %s: %w", path, err)
	}
	return nil
}

func isDirErr(abs string) bool {
	info, err := os.Stat(abs)
	return err == nil && info.IsDir()
}
