// Package noteservice is the single entry point callers use to touch notes.
// It wraps the store with the hook pipeline, per-path locks, graph cache
// invalidation, link index refresh and change events.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
	"github.com/sudo-Harshk/NoteDiscovery/internal/attachments"
	"github.com/sudo-Harshk/NoteDiscovery/internal/checksum"
	"github.com/sudo-Harshk/NoteDiscovery/internal/graph"
	"github.com/sudo-Harshk/NoteDiscovery/internal/hooks"
	"github.com/sudo-Harshk/NoteDiscovery/internal/index"
	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
	"github.com/sudo-Harshk/NoteDiscovery/internal/parser"
	"github.com/sudo-Harshk/NoteDiscovery/internal/pathlock"
	"github.com/sudo-Harshk/NoteDiscovery/internal/search"
	"github.com/sudo-Harshk/NoteDiscovery/internal/sse"
	"github.com/sudo-Harshk/NoteDiscovery/internal/storage"
)

// Publisher receives change events. *sse.Broker implements it.
type Publisher interface {
	Notify(kind string, data any)
}

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Name        string         `json:"name"`
	Folder      string         `json:"folder"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Links       models.Links   `json:"links"`
	Backlinks   []string       `json:"backlinks"`
}

// Listing is the combined notes and folders view of the store.
type Listing struct {
	Notes   []models.NoteInfo `json:"notes"`
	Folders []string          `json:"folders"`
}

// SaveResult reports the outcome of SaveNote.
type SaveResult struct {
	Path    string `json:"path"`
	Created bool   `json:"created"`
	Content string `json:"content"`
}

// Service coordinates storage, attachments, graph and index operations.
type Service struct {
	store   storage.Provider
	att     *attachments.Resolver
	builder *graph.Builder

	hooks  *hooks.Pipeline
	locks  *pathlock.Locker
	db     index.NoteIndex
	syncer *index.Syncer
	pub    Publisher
	logger *slog.Logger

	searchEnabled bool
}

// Option configures a Service.
type Option func(*Service)

// WithHooks sets the pipeline run around reads and writes.
func WithHooks(p *hooks.Pipeline) Option {
	return func(s *Service) { s.hooks = p }
}

// WithIndex makes Backlinks and note metadata come from the link index.
// syncer may be nil, in which case the index is never refreshed by the service.
func WithIndex(db index.NoteIndex, syncer *index.Syncer) Option {
	return func(s *Service) {
		s.db = db
		s.syncer = syncer
	}
}

// WithPublisher sets the receiver of move and folder events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSearch enables or disables Search.
func WithSearch(enabled bool) Option {
	return func(s *Service) { s.searchEnabled = enabled }
}

// New creates a note service. Search is enabled unless an option turns it off.
func New(store storage.Provider, att *attachments.Resolver, builder *graph.Builder, opts ...Option) *Service {
	s := &Service{
		store:         store,
		att:           att,
		builder:       builder,
		locks:         pathlock.New(),
		searchEnabled: true,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.hooks == nil {
		s.hooks = hooks.New(s.logger)
	}
	return s
}

// ListItems returns notes and images newest first, plus every folder.
func (s *Service) ListItems(_ context.Context) (*Listing, error) {
	notes, err := s.store.ListNotes()
	if err != nil {
		return nil, err
	}
	images, err := s.att.List()
	if err != nil {
		return nil, err
	}
	items := append(notes, images...)
	storage.SortNewestFirst(items)

	folders, err := s.store.ListFolders()
	if err != nil {
		return nil, err
	}
	return &Listing{Notes: nonNil(items), Folders: nonNil(folders)}, nil
}

// ListFolders returns every folder under the root, sorted.
func (s *Service) ListFolders(_ context.Context) ([]string, error) {
	folders, err := s.store.ListFolders()
	if err != nil {
		return nil, err
	}
	return nonNil(folders), nil
}

// GetNote reads a note, runs load hooks and enriches it with backlinks.
func (s *Service) GetNote(ctx context.Context, path string) (*NoteDetail, error) {
	path = storage.NormalizeNotePath(path)
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	content, err := s.hooks.AfterRead(ctx, path, string(data))
	if err != nil {
		return nil, err
	}
	doc := parser.Parse([]byte(content))
	bl, err := s.Backlinks(ctx, path)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:        path,
		Name:        storage.NoteName(path),
		Folder:      storage.NoteFolder(path),
		Title:       doc.Title,
		Content:     content,
		Checksum:    checksum.Sum(data),
		Tags:        nonNil(doc.Tags),
		Frontmatter: doc.Meta,
		Links:       doc.Links,
		Backlinks:   bl,
	}, nil
}

// SaveNote creates or overwrites a note. Create hooks run only when the note
// did not exist; the returned content is what was persisted.
func (s *Service) SaveNote(ctx context.Context, path, content string) (*SaveResult, error) {
	path = storage.NormalizeNotePath(path)
	release := s.locks.Lock(path)
	defer release()

	exists, err := s.store.Exists(path)
	if err != nil {
		return nil, err
	}
	out, err := s.hooks.BeforeWrite(ctx, path, content, !exists)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, []byte(out)); err != nil {
		return nil, err
	}
	s.changed(path)
	s.logger.Debug("note saved", slog.String("path", path), slog.Bool("created", !exists))
	return &SaveResult{Path: path, Created: !exists, Content: out}, nil
}

// DeleteNote removes a note and notifies the hooks.
func (s *Service) DeleteNote(ctx context.Context, path string) error {
	path = storage.NormalizeNotePath(path)
	release := s.locks.Lock(path)
	defer release()

	if err := s.store.Delete(path); err != nil {
		return err
	}
	s.hooks.Deleted(ctx, path)
	s.changed(path)
	return nil
}

// MoveNote renames a note and returns its new normalized path.
func (s *Service) MoveNote(_ context.Context, oldPath, newPath string) (string, error) {
	oldPath = storage.NormalizeNotePath(oldPath)
	newPath = storage.NormalizeNotePath(newPath)
	release := s.locks.Lock(oldPath, newPath)
	defer release()

	if err := s.store.Move(oldPath, newPath); err != nil {
		return "", err
	}
	s.changed(oldPath, newPath)
	s.notify(sse.NoteMoved, map[string]string{"from": oldPath, "to": newPath})
	return newPath, nil
}

// CreateFolder creates a folder and any missing parents.
func (s *Service) CreateFolder(_ context.Context, path string) error {
	release := s.locks.LockTree()
	defer release()

	if err := s.store.CreateFolder(path); err != nil {
		return err
	}
	s.notify(sse.FolderCreated, map[string]string{"path": path})
	return nil
}

// MoveFolder moves a folder and everything beneath it.
func (s *Service) MoveFolder(_ context.Context, oldPath, newPath string) error {
	return s.folderMove(oldPath, newPath, s.store.MoveFolder)
}

// RenameFolder renames a folder in place or across parents.
func (s *Service) RenameFolder(_ context.Context, oldPath, newPath string) error {
	return s.folderMove(oldPath, newPath, s.store.RenameFolder)
}

func (s *Service) folderMove(oldPath, newPath string, op func(string, string) error) error {
	release := s.locks.LockTree()
	defer release()

	if err := op(oldPath, newPath); err != nil {
		return err
	}
	s.treeChanged()
	s.notify(sse.FolderMoved, map[string]string{"from": oldPath, "to": newPath})
	return nil
}

// DeleteFolder removes a folder recursively.
func (s *Service) DeleteFolder(_ context.Context, path string) error {
	release := s.locks.LockTree()
	defer release()

	if err := s.store.DeleteFolder(path); err != nil {
		return err
	}
	s.treeChanged()
	s.notify(sse.FolderDeleted, map[string]string{"path": path})
	return nil
}

// UploadImage stores an image next to notePath and returns its relative path.
func (s *Service) UploadImage(_ context.Context, notePath, filename string, data []byte) (string, error) {
	rel, err := s.att.Save(notePath, filename, data)
	if err != nil {
		return "", err
	}
	s.logger.Info("image uploaded", slog.String("path", rel), slog.Int("size", len(data)))
	return rel, nil
}

// ImagePath resolves an attachment path to a file that can be served.
func (s *Service) ImagePath(rel string) (string, error) {
	return s.att.Open(rel)
}

// Search scans every note for query.
func (s *Service) Search(ctx context.Context, query string) ([]search.Result, error) {
	if !s.searchEnabled {
		return nil, apperr.ErrDisabled
	}
	return search.Scan(ctx, s.store, query)
}

// Graph builds the reference graph.
func (s *Service) Graph(ctx context.Context) (*models.Graph, error) {
	return s.builder.Build(ctx)
}

// Backlinks returns the notes linking to path, sorted. The link index is used
// when configured; otherwise the graph is built on demand.
func (s *Service) Backlinks(ctx context.Context, path string) ([]string, error) {
	path = storage.NormalizeNotePath(path)
	if s.db != nil {
		if s.syncer != nil {
			if err := s.syncer.SyncIfDirty(ctx); err != nil {
				s.logger.Warn("backlinks: index refresh failed", slog.String("error", err.Error()))
			}
		}
		bl, err := s.db.Backlinks(path)
		if err == nil {
			return nonNil(bl), nil
		}
		s.logger.Warn("backlinks: index lookup failed", slog.String("path", path), slog.String("error", err.Error()))
	}

	g, err := s.builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("noteservice: backlinks: %w", err)
	}
	out := []string{}
	for _, e := range g.Edges {
		if e.Target == path {
			out = append(out, e.Source)
		}
	}
	sort.Strings(out)
	return out, nil
}

// NoteMeta returns the cached title and tags of path from the link index.
func (s *Service) NoteMeta(path string) (*index.NoteRow, error) {
	if s.db == nil {
		return nil, apperr.ErrDisabled
	}
	row, err := s.db.GetNote(storage.NormalizeNotePath(path))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("noteservice: note meta: %w", err)
	}
	return row, nil
}

func (s *Service) changed(paths ...string) {
	for _, p := range paths {
		s.builder.Invalidate(p)
	}
	if s.syncer != nil {
		s.syncer.Schedule(paths...)
	}
}

func (s *Service) treeChanged() {
	s.builder.Reset()
	if s.syncer != nil {
		s.syncer.Schedule()
	}
}

func (s *Service) notify(kind string, data any) {
	if s.pub != nil {
		s.pub.Notify(kind, data)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
