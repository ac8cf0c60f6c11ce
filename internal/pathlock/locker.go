// Package pathlock serializes mutations of the same note path.
//
// Note operations take per-path locks that share a tree-wide read lock;
// folder operations take the tree lock exclusively, so a folder move never
// interleaves with a write to a note underneath it.
package pathlock

import (
	"sort"
	"sync"
)

// Locker hands out per-path mutexes with reference counting so the map does
// not grow with every path ever touched.
type Locker struct {
	tree sync.RWMutex

	mu    sync.Mutex
	paths map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{paths: make(map[string]*entry)}
}

// Lock acquires the locks for every given path and returns the function that
// releases them. Paths are sorted and deduplicated before locking so two
// callers locking the same set in a different order cannot deadlock.
func (l *Locker) Lock(paths ...string) (release func()) {
	keys := uniqueSorted(paths)

	l.tree.RLock()
	held := make([]*entry, 0, len(keys))
	for _, k := range keys {
		e := l.ref(k)
		e.mu.Lock()
		held = append(held, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.unref(keys[i])
			}
			l.tree.RUnlock()
		})
	}
}

// LockTree acquires exclusive access to the whole storage tree.
func (l *Locker) LockTree() (release func()) {
	l.tree.Lock()
	var once sync.Once
	return func() {
		once.Do(l.tree.Unlock)
	}
}

// Len returns the number of paths currently locked or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.paths)
}

func (l *Locker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.paths[key]
	if !ok {
		e = &entry{}
		l.paths[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.paths[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(l.paths, key)
	}
}

func uniqueSorted(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
