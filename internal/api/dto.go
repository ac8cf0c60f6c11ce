package api

import (
	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
	"github.com/sudo-Harshk/NoteDiscovery/internal/noteservice"
	"github.com/sudo-Harshk/NoteDiscovery/internal/search"
)

// SaveNoteRequest is the body of POST /api/notes/{path}.
type SaveNoteRequest struct {
	Content string `json:"content"`
}

// SaveNoteResponse reports whether the note was created and what was stored.
type SaveNoteResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Created bool   `json:"created"`
	Content string `json:"content"`
}

// MoveRequest is the body of the note and folder move/rename endpoints.
type MoveRequest struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
}

// MoveResponse echoes the paths of a successful move.
type MoveResponse struct {
	Success bool   `json:"success"`
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
}

// FolderRequest is the body of POST /api/folders.
type FolderRequest struct {
	Path string `json:"path"`
}

// PathResponse acknowledges an operation on a single path.
type PathResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// UploadResponse is returned after a successful image upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Result `json:"results"`
	Query   string          `json:"query"`
}

// BacklinksResponse lists the notes referencing a note.
type BacklinksResponse struct {
	Path      string   `json:"path"`
	Backlinks []string `json:"backlinks"`
}

// NoteDetail is the single note response type.
type NoteDetail = noteservice.NoteDetail

// ListResponse is the GET /api/notes payload.
type ListResponse = noteservice.Listing

// GraphResponse is the GET /api/graph payload.
type GraphResponse = models.Graph
