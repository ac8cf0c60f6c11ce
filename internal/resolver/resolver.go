// Package resolver maps raw reference targets to known note paths.
//
// Tiers are tried in order and the first hit wins:
//
//  1. exact path, extension implied when missing
//  2. target plus extension, exact
//  3. tier 1, case-insensitive
//  4. tier 2, case-insensitive
//  5. display name, case-insensitive, folders ignored
//  6. inline references only: tier 5 on the last path segment
package resolver

import (
	"path"
	"sort"
	"strings"

	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
)

// Tier numbers reported in Match.
const (
	TierExact         = 1
	TierExtension     = 2
	TierFoldExact     = 3
	TierFoldExtension = 4
	TierName          = 5
	TierBaseName      = 6
)

// Match is a resolved reference.
type Match struct {
	Path string
	Tier int
}

// Index is the lookup structure over a fixed corpus of note paths. It is
// built once per graph build and is safe for concurrent reads.
type Index struct {
	exact map[string]struct{}
	fold  map[string]string
	names map[string]string
}

// NewIndex builds an Index over paths. When several notes collide under a
// case-folded path or display name, the winner is chosen by preferNote.
func NewIndex(paths []string) *Index {
	idx := &Index{
		exact: make(map[string]struct{}, len(paths)),
		fold:  make(map[string]string, len(paths)),
		names: make(map[string]string, len(paths)),
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for _, p := range sorted {
		idx.exact[p] = struct{}{}

		lp := strings.ToLower(p)
		if cur, ok := idx.fold[lp]; !ok || preferNote(p, cur) {
			idx.fold[lp] = p
		}

		name := strings.ToLower(strings.TrimSuffix(path.Base(p), models.NoteExt))
		if cur, ok := idx.names[name]; !ok || preferNote(p, cur) {
			idx.names[name] = p
		}
	}
	return idx
}

// preferNote reports whether a should win over b: root-level notes first,
// then fewer path segments, then the lexicographically smaller path.
func preferNote(a, b string) bool {
	da, db := strings.Count(a, "/"), strings.Count(b, "/")
	if da != db {
		return da < db
	}
	return a < b
}

// Len returns the number of indexed notes.
func (idx *Index) Len() int { return len(idx.exact) }

// Resolve returns the note target refers to. Wikilink targets stop at tier 5;
// inline targets may fall through to tier 6.
func (idx *Index) Resolve(target string, kind models.LinkKind) (Match, bool) {
	target = normalizeTarget(target)
	if target == "" {
		return Match{}, false
	}

	implied := target
	if !strings.HasSuffix(implied, models.NoteExt) {
		implied += models.NoteExt
	}
	withExt := target + models.NoteExt

	if _, ok := idx.exact[implied]; ok {
		return Match{Path: implied, Tier: TierExact}, true
	}
	if _, ok := idx.exact[withExt]; ok {
		return Match{Path: withExt, Tier: TierExtension}, true
	}
	if p, ok := idx.fold[strings.ToLower(implied)]; ok {
		return Match{Path: p, Tier: TierFoldExact}, true
	}
	if p, ok := idx.fold[strings.ToLower(withExt)]; ok {
		return Match{Path: p, Tier: TierFoldExtension}, true
	}
	if p, ok := idx.byName(target); ok {
		return Match{Path: p, Tier: TierName}, true
	}
	if kind == models.LinkMarkdown {
		if i := strings.LastIndex(target, "/"); i >= 0 {
			if p, ok := idx.byName(target[i+1:]); ok {
				return Match{Path: p, Tier: TierBaseName}, true
			}
		}
	}
	return Match{}, false
}

func (idx *Index) byName(name string) (string, bool) {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(lower, models.NoteExt)
	if lower == "" {
		return "", false
	}
	p, ok := idx.names[lower]
	return p, ok
}

func normalizeTarget(target string) string {
	target = strings.TrimSpace(strings.ReplaceAll(target, "\\", "/"))
	return strings.TrimLeft(target, "/")
}
