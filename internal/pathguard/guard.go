// Package pathguard keeps every filesystem path inside the configured storage root.
package pathguard

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
)

// IsContained reports whether candidate, once made absolute, cleaned and
// stripped of symlinks, is root itself or nested under it. Any resolution
// failure yields false.
func IsContained(root, candidate string) bool {
	if root == "" || candidate == "" {
		return false
	}
	if strings.ContainsRune(root, 0) || strings.ContainsRune(candidate, 0) {
		return false
	}
	canonRoot, err := canonical(root)
	if err != nil {
		return false
	}
	canonCand, err := canonical(candidate)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(canonRoot, canonCand)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

// Resolve joins the slash-separated rel onto root and returns the absolute
// path, or apperr.ErrInvalidPath when the result escapes root. An absolute
// rel replaces root entirely, the same way path joining treats it, and is
// then subject to the containment check.
func Resolve(root, rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%w: %q", apperr.ErrInvalidPath, rel)
	}
	native := filepath.FromSlash(rel)
	var joined string
	if filepath.IsAbs(native) {
		joined = filepath.Clean(native)
	} else {
		joined = filepath.Join(root, native)
	}
	if !IsContained(root, joined) {
		return "", fmt.Errorf("%w: %q escapes storage root", apperr.ErrInvalidPath, rel)
	}
	return joined, nil
}

// canonical returns the absolute, symlink-free form of p. Components that do
// not exist yet are appended to the resolved form of their deepest existing
// ancestor, so paths about to be created can still be checked.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	existing := abs
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = append(rest, filepath.Base(existing))
		existing = parent
	}
}
