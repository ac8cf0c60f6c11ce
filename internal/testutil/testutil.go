// Package testutil provides shared test helpers for setting up note roots and databases.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sudo-Harshk/NoteDiscovery/internal/index"
	"github.com/sudo-Harshk/NoteDiscovery/internal/storage"
)

// TestDB opens a link index in a temporary directory, closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "notes-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates an empty notes root backed by storage.FS.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteNotes stores every path/content pair, failing the test on error.
func WriteNotes(t *testing.T, store storage.Provider, notes map[string]string) {
	t.Helper()
	for p, c := range notes {
		if err := store.Write(p, []byte(c)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
