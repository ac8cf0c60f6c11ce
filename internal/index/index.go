package index

import "github.com/sudo-Harshk/NoteDiscovery/internal/models"

// NoteIndex is what the note service needs from the link cache.
// Consumers depend on this interface rather than *DB so tests can stub it.
type NoteIndex interface {
	UpsertNote(n NoteRow) error
	DeleteNote(path string) error
	GetNote(path string) (*NoteRow, error)
	AllNotes() (map[string]NoteRow, error)
	ReplaceLinks(edges []models.GraphEdge) error
	Backlinks(target string) ([]string, error)
	Outlinks(source string) ([]string, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)
