package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sudo-Harshk/NoteDiscovery/internal/checksum"
	"github.com/sudo-Harshk/NoteDiscovery/internal/graph"
	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
	"github.com/sudo-Harshk/NoteDiscovery/internal/parser"
)

// Source is the part of the note store Sync reads from.
type Source interface {
	ListNotes() ([]models.NoteInfo, error)
	Read(path string) ([]byte, error)
}

// Stats summarizes one Sync pass.
type Stats struct {
	Indexed int
	Removed int
	Links   int
}

// Sync brings the index up to date with the store:
//   - notes whose size or mtime changed are parsed and upserted
//   - rows without a file on disk are removed
//   - the links table is replaced with the edges of a fresh graph build
func Sync(ctx context.Context, db NoteIndex, src Source, builder *graph.Builder, logger *slog.Logger) (Stats, error) {
	return syncPass(ctx, db, src, builder, logger, nil)
}

// syncPass is Sync with a set of paths that are re-read even when their
// size and mtime look unchanged.
func syncPass(ctx context.Context, db NoteIndex, src Source, builder *graph.Builder, logger *slog.Logger, force map[string]struct{}) (Stats, error) {
	var st Stats
	notes, err := src.ListNotes()
	if err != nil {
		return st, fmt.Errorf("index: sync list: %w", err)
	}
	existing, err := db.AllNotes()
	if err != nil {
		return st, err
	}

	disk := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		disk[n.Path] = struct{}{}
		_, forced := force[n.Path]
		if row, ok := existing[n.Path]; ok && !forced && row.Size == n.Size && row.Modified.Equal(n.Modified) {
			continue
		}
		data, err := src.Read(n.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", n.Path), slog.String("error", err.Error()))
			continue
		}
		if err := db.UpsertNote(Row(n, data)); err != nil {
			logger.Warn("sync: index failed", slog.String("path", n.Path), slog.String("error", err.Error()))
			continue
		}
		st.Indexed++
		logger.Debug("sync: indexed", slog.String("path", n.Path))
	}

	for p := range existing {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		st.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	g, err := builder.Build(ctx)
	if err != nil {
		return st, fmt.Errorf("index: sync graph: %w", err)
	}
	if err := db.ReplaceLinks(g.Edges); err != nil {
		return st, err
	}
	st.Links = len(g.Edges)
	return st, nil
}

// Row derives the cached metadata of a note from its listing entry and bytes.
func Row(info models.NoteInfo, data []byte) NoteRow {
	doc := parser.Parse(data)
	return NoteRow{
		Path:     info.Path,
		Title:    doc.Title,
		Checksum: checksum.Sum(data),
		Tags:     doc.Tags,
		Size:     info.Size,
		Modified: info.Modified,
	}
}

// Syncer serializes Sync passes and coalesces bursts of change
// notifications into one pass after a quiet period.
type Syncer struct {
	db      NoteIndex
	src     Source
	builder *graph.Builder
	logger  *slog.Logger
	delay   time.Duration

	run sync.Mutex // held for the duration of a pass

	mu     sync.Mutex
	dirty  bool
	force  map[string]struct{}
	timer  *time.Timer
	closed bool
}

// NewSyncer returns a Syncer that waits delay after the last Schedule call.
func NewSyncer(db NoteIndex, src Source, builder *graph.Builder, delay time.Duration, logger *slog.Logger) *Syncer {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{db: db, src: src, builder: builder, delay: delay, logger: logger}
}

// Sync runs a pass now.
func (s *Syncer) Sync(ctx context.Context) (Stats, error) {
	s.run.Lock()
	defer s.run.Unlock()

	s.mu.Lock()
	s.dirty = false
	force := s.force
	s.force = nil
	s.mu.Unlock()

	st, err := syncPass(ctx, s.db, s.src, s.builder, s.logger, force)
	if err != nil {
		s.mu.Lock()
		s.dirty = true
		if s.force == nil {
			s.force = make(map[string]struct{}, len(force))
		}
		for p := range force {
			s.force[p] = struct{}{}
		}
		s.mu.Unlock()
		return st, err
	}
	return st, nil
}

// SyncIfDirty runs a pass only when a change was scheduled and not yet synced.
func (s *Syncer) SyncIfDirty(ctx context.Context) error {
	s.mu.Lock()
	dirty := s.dirty && !s.closed
	s.mu.Unlock()
	if !dirty {
		return nil
	}
	_, err := s.Sync(ctx)
	return err
}

// Schedule marks the index stale and arranges a background pass. The given
// paths are re-read on that pass regardless of their mtime.
func (s *Syncer) Schedule(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.dirty = true
	for _, p := range paths {
		if s.force == nil {
			s.force = make(map[string]struct{})
		}
		s.force[p] = struct{}{}
	}
	if s.timer != nil {
		s.timer.Reset(s.delay)
		return
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if err := s.SyncIfDirty(context.Background()); err != nil {
			s.logger.Warn("sync: background pass failed", slog.String("error", err.Error()))
		}
	})
}

// Stop cancels any pending background pass and waits for a running one.
func (s *Syncer) Stop() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.run.Lock()
	s.run.Unlock() //nolint:staticcheck // wait only
}
