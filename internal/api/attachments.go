package api

import (
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/sudo-Harshk/NoteDiscovery/internal/attachments"
)

// multipart overhead allowed on top of the image size cap.
const uploadSlack = 1 << 20

// ServeImage handles GET /api/images/*.
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	rel := wildcardPath(r)
	if rel == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	abs, err := h.svc.ImagePath(rel)
	if err != nil {
		writeError(w, h.logger.With(slog.String("path", rel)), "serve image", err)
		return
	}
	w.Header().Set("Content-Type", attachments.ContentType(rel))
	http.ServeFile(w, r, abs)
}

// UploadImage handles POST /api/upload-image (multipart/form-data with the
// fields "file" and "note_path").
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUpload + uploadSlack
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}
	rel, err := h.svc.UploadImage(r.Context(), r.FormValue("note_path"), header.Filename, data)
	if err != nil {
		writeError(w, h.logger.With(slog.String("filename", header.Filename)), "upload image", err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{Success: true, Path: rel, Filename: path.Base(rel)})
}
