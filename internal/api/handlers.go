package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sudo-Harshk/NoteDiscovery/internal/noteservice"
)

const maxJSONBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc       *noteservice.Service
	maxUpload int64
	logger    *slog.Logger
}

// NewHandler creates a new Handler. maxUpload caps the image size accepted
// by UploadImage.
func NewHandler(svc *noteservice.Service, maxUpload int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, maxUpload: maxUpload, logger: logger}
}

// wildcardPath extracts the path after the route prefix. Encoded slashes
// (topics%2Fnote.md) are accepted.
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	// chi routes on RawPath when it is set; otherwise the param is already decoded.
	if raw == "" || r.URL.RawPath == "" {
		return raw
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeError(w, h.logger, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// GetNote handles GET /api/notes/*. The checksum doubles as ETag.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		writeError(w, h.logger.With(slog.String("path", path)), "get note", err)
		return
	}
	etag := `"` + note.Checksum + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// SaveNote handles POST /api/notes/*, creating or overwriting the note.
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req SaveNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SaveNote(r.Context(), path, req.Content)
	if err != nil {
		writeError(w, h.logger.With(slog.String("path", path)), "save note", err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, SaveNoteResponse{Success: true, Path: res.Path, Created: res.Created, Content: res.Content})
}

// DeleteNote handles DELETE /api/notes/*.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), path); err != nil {
		writeError(w, h.logger.With(slog.String("path", path)), "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNote handles POST /api/notes/move.
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("oldPath and newPath are required"))
		return
	}
	to, err := h.svc.MoveNote(r.Context(), req.OldPath, req.NewPath)
	if err != nil {
		writeError(w, h.logger, "move note", err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Success: true, OldPath: req.OldPath, NewPath: to})
}

// Backlinks handles GET /api/notes-backlinks/*.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		writeError(w, h.logger, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: bl})
}

// CreateFolder handles POST /api/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.CreateFolder(r.Context(), req.Path); err != nil {
		writeError(w, h.logger, "create folder", err)
		return
	}
	writeJSON(w, http.StatusCreated, PathResponse{Success: true, Path: req.Path})
}

// MoveFolder handles POST /api/folders/move.
func (h *Handler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	h.folderMove(w, r, "move folder", h.svc.MoveFolder)
}

// RenameFolder handles POST /api/folders/rename.
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	h.folderMove(w, r, "rename folder", h.svc.RenameFolder)
}

func (h *Handler) folderMove(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string, string) error) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("oldPath and newPath are required"))
		return
	}
	if err := fn(r.Context(), req.OldPath, req.NewPath); err != nil {
		writeError(w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Success: true, OldPath: req.OldPath, NewPath: req.NewPath})
}

// DeleteFolder handles DELETE /api/folders/*.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteFolder(r.Context(), path); err != nil {
		writeError(w, h.logger.With(slog.String("path", path)), "delete folder", err)
		return
	}
	writeJSON(w, http.StatusOK, PathResponse{Success: true, Path: path})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results, err := h.svc.Search(r.Context(), q)
	if err != nil {
		writeError(w, h.logger.With(slog.String("query", q)), "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results, Query: q})
}

// Graph handles GET /api/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, h.logger, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
