package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sudo-Harshk/NoteDiscovery/internal/noteservice"
)

// RouterConfig carries what NewRouter needs besides the service.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	// MaxUpload caps image uploads in bytes.
	MaxUpload int64
	// Events, if non-nil, is mounted at GET /events behind the auth middleware.
	Events http.Handler
	Logger *slog.Logger
}

// NewRouter creates a chi router with all API routes, meant to be mounted at /api.
func NewRouter(svc *noteservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, cfg.MaxUpload, cfg.Logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes/move", h.MoveNote)
	r.Get("/notes/*", h.GetNote)
	r.Post("/notes/*", h.SaveNote)
	r.Delete("/notes/*", h.DeleteNote)
	r.Get("/notes-backlinks/*", h.Backlinks)

	// Folders.
	r.Post("/folders", h.CreateFolder)
	r.Post("/folders/move", h.MoveFolder)
	r.Post("/folders/rename", h.RenameFolder)
	r.Delete("/folders/*", h.DeleteFolder)

	// Images.
	r.Get("/images/*", h.ServeImage)
	r.Post("/upload-image", h.UploadImage)

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}
	return r
}
