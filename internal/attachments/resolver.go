// Package attachments places uploaded images in the _attachments directory
// that sits next to the note referencing them.
package attachments

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
	"github.com/sudo-Harshk/NoteDiscovery/internal/pathguard"
	"github.com/sudo-Harshk/NoteDiscovery/internal/storage"
)

// DirName is the per-folder attachment directory.
const DirName = "_attachments"

// DefaultMaxBytes caps a single upload.
const DefaultMaxBytes = 10 << 20

const stampLayout = "20060102150405"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Resolver computes attachment locations under a storage root.
type Resolver struct {
	root     string
	maxBytes int64
	now      func() time.Time
}

// New returns a Resolver for root. A non-positive maxBytes selects DefaultMaxBytes.
func New(root string, maxBytes int64) *Resolver {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Resolver{root: root, maxBytes: maxBytes, now: time.Now}
}

// MaxBytes returns the upload size cap.
func (r *Resolver) MaxBytes() int64 { return r.maxBytes }

// IsImage reports whether name carries an allowed image extension.
func IsImage(name string) bool {
	_, ok := imageExts[strings.ToLower(path.Ext(name))]
	return ok
}

// ContentType returns the MIME type for an allowed image name, "" otherwise.
func ContentType(name string) string {
	return imageExts[strings.ToLower(path.Ext(name))]
}

// Sanitize replaces every character outside [A-Za-z0-9_-] in the stem and
// the extension of name with an underscore.
func Sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	stem, ext := name, ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		stem, ext = name[:i], name[i+1:]
	}
	stem = unsafeChars.ReplaceAllString(stem, "_")
	if ext == "" {
		return stem
	}
	return stem + "." + unsafeChars.ReplaceAllString(ext, "_")
}

// Dir returns the root-relative attachment directory for notePath: "_attachments"
// for root-level notes (or an empty path), "<folder>/_attachments" otherwise.
func (r *Resolver) Dir(notePath string) (string, error) {
	notePath = strings.TrimPrefix(strings.ReplaceAll(notePath, "\\", "/"), "./")
	rel := DirName
	if notePath != "" {
		if folder := storage.NoteFolder(notePath); folder != "" {
			rel = folder + "/" + DirName
		}
	}
	if _, err := pathguard.Resolve(r.root, rel); err != nil {
		return "", err
	}
	return rel, nil
}

// Save writes data as an image attachment for notePath and returns its
// root-relative path. The directory is created on first use.
func (r *Resolver) Save(notePath, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upload", apperr.ErrInvalidInput)
	}
	if int64(len(data)) > r.maxBytes {
		return "", fmt.Errorf("%w: upload exceeds %d bytes", apperr.ErrInvalidInput, r.maxBytes)
	}
	clean := Sanitize(filename)
	ext := strings.ToLower(path.Ext(clean))
	if _, ok := imageExts[ext]; !ok {
		return "", fmt.Errorf("%w: unsupported image type %q", apperr.ErrInvalidInput, path.Ext(filename))
	}
	stem := strings.TrimSuffix(clean, path.Ext(clean))
	if strings.Trim(stem, "_") == "" {
		stem = uuid.NewString()[:8]
	}

	dirRel, err := r.Dir(notePath)
	if err != nil {
		return "", err
	}
	dirAbs, err := pathguard.Resolve(r.root, dirRel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirAbs, 0o755); err != nil {
		return "", fmt.Errorf("attachments: mkdir: %w", err)
	}

	base := stem + "-" + r.now().Format(stampLayout)
	name := base + ext
	for attempt := 0; attempt < 3; attempt++ {
		rel := dirRel + "/" + name
		abs, err := pathguard.Resolve(r.root, rel)
		if err != nil {
			return "", err
		}
		err = writeExclusive(abs, data)
		if err == nil {
			return rel, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("attachments: write %s: %w", rel, err)
		}
		name = base + "-" + uuid.NewString()[:8] + ext
	}
	return "", fmt.Errorf("attachments: %w: could not pick a free name for %s", apperr.ErrConflict, filename)
}

func writeExclusive(abs string, data []byte) error {
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(abs)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(abs)
		return err
	}
	return nil
}

// List returns every image found directly inside an _attachments directory.
func (r *Resolver) List() ([]models.NoteInfo, error) {
	var out []models.NoteInfo
	err := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) && p != r.root {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			if p != r.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Base(filepath.Dir(p)) != DirName || !IsImage(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		out = append(out, models.NoteInfo{
			Path:     rel,
			Name:     d.Name(),
			Folder:   path.Dir(rel),
			Modified: info.ModTime(),
			Size:     info.Size(),
			Kind:     models.KindImage,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attachments: list: %w", err)
	}
	return out, nil
}

// Open returns the absolute path of the image at rel.
func (r *Resolver) Open(rel string) (string, error) {
	if !IsImage(rel) {
		return "", fmt.Errorf("%w: not an image: %q", apperr.ErrInvalidInput, rel)
	}
	abs, err := pathguard.Resolve(r.root, rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("attachments: %s: %w", rel, apperr.ErrNotFound)
	}
	return abs, nil
}
