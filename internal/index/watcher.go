package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
)

// Change kinds reported to an EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called for every note-level change the watcher sees.
// path is slash-separated and relative to the root.
type EventCallback func(kind, path string)

// Watch follows root with fsnotify until ctx is cancelled. Note events are
// reported through cb; every relevant event, directory changes included,
// also calls schedule so the caller can coalesce them into one index pass.
//
// Directories created at runtime are added to the watch list. Directories
// whose name starts with "." are ignored.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb EventCallback, schedule func(paths ...string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	// Atomic saves land as a rename onto the note, which fsnotify reports as
	// Create. Known paths turn that into an update.
	known := make(map[string]struct{})
	for _, p := range notesUnder(root, root) {
		known[p] = struct{}{}
	}
	created := func(rel string) string {
		if _, ok := known[rel]; ok {
			return ChangeUpdated
		}
		known[rel] = struct{}{}
		return ChangeCreated
	}

	notify := func(kind, rel string) {
		logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
		if cb != nil {
			cb(kind, rel)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, ok := relPath(root, ev.Name)
			if !ok {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					}
					// Files may land in the directory before the watch is added.
					for _, p := range notesUnder(root, ev.Name) {
						notify(created(p), p)
					}
					schedule()
					continue
				}
			}

			if !strings.HasSuffix(rel, models.NoteExt) {
				// A removed or renamed directory takes its notes with it.
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					prefix := rel + "/"
					for p := range known {
						if strings.HasPrefix(p, prefix) {
							delete(known, p)
							notify(ChangeDeleted, p)
						}
					}
					schedule()
				}
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				notify(created(rel), rel)
				schedule(rel)
			case ev.Op&fsnotify.Write != 0:
				notify(ChangeUpdated, rel)
				schedule(rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path only; the new path arrives as Create.
				delete(known, rel)
				notify(ChangeDeleted, rel)
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relPath returns the slash form of abs relative to root, rejecting paths
// inside hidden directories.
func relPath(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	return rel, true
}

// notesUnder lists the notes already present below dir.
func notesUnder(root, dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if rel, ok := relPath(root, p); ok && strings.HasSuffix(rel, models.NoteExt) {
			out = append(out, rel)
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
