// Package storage implements the file-backed note store rooted at a single directory.
package storage

import "github.com/sudo-Harshk/NoteDiscovery/internal/models"

// Provider is the interface for note and folder operations. All paths are
// slash-separated and relative to the storage root.
type Provider interface {
	// Root returns the absolute storage root.
	Root() string
	// ListNotes returns every note under the root, newest first.
	ListNotes() ([]models.NoteInfo, error)
	// ListFolders returns every non-hidden directory, sorted.
	ListFolders() ([]string, error)
	// Exists reports whether the note at path is present.
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the note at path.
	Read(path string) ([]byte, error)
	// Write creates or atomically replaces the note at path.
	Write(path string, content []byte) error
	// Delete removes the note at path.
	Delete(path string) error
	// Move renames oldPath to newPath with a single rename.
	Move(oldPath, newPath string) error
	// CreateFolder creates path and any missing parents; existing folders are fine.
	CreateFolder(path string) error
	// MoveFolder renames a directory; the destination must not exist.
	MoveFolder(oldPath, newPath string) error
	// RenameFolder is MoveFolder under another name.
	RenameFolder(oldPath, newPath string) error
	// DeleteFolder removes path and everything below it.
	DeleteFolder(path string) error
}
