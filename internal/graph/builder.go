// Package graph assembles the reference graph of a storage root.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
	"github.com/sudo-Harshk/NoteDiscovery/internal/parser"
	"github.com/sudo-Harshk/NoteDiscovery/internal/resolver"
)

// Source is the part of the note store the builder reads from.
type Source interface {
	ListNotes() ([]models.NoteInfo, error)
	Read(path string) ([]byte, error)
}

type cached struct {
	modified time.Time
	size     int64
	links    models.Links
}

// Builder rescans the store on every Build. Extracted links are kept in an
// LRU keyed by path and reused while the file's mtime and size are unchanged.
type Builder struct {
	src    Source
	cache  *lru.Cache[string, cached]
	logger *slog.Logger
}

// NewBuilder returns a Builder over src. cacheSize <= 0 disables the link cache.
func NewBuilder(src Source, cacheSize int, logger *slog.Logger) (*Builder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{src: src, logger: logger}
	if cacheSize > 0 {
		c, err := lru.New[string, cached](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("graph: create cache: %w", err)
		}
		b.cache = c
	}
	return b, nil
}

// Invalidate drops the cached links of path.
func (b *Builder) Invalidate(path string) {
	if b.cache != nil {
		b.cache.Remove(path)
	}
}

// Reset drops every cached entry. Folder moves and deletes call this.
func (b *Builder) Reset() {
	if b.cache != nil {
		b.cache.Purge()
	}
}

// Build lists all notes, resolves their references and returns the
// deduplicated graph. A note that cannot be read is left out of this build;
// only a listing failure or cancellation aborts it.
func (b *Builder) Build(ctx context.Context) (*models.Graph, error) {
	notes, err := b.src.ListNotes()
	if err != nil {
		return nil, fmt.Errorf("graph: list notes: %w", err)
	}

	paths := make([]string, len(notes))
	for i, n := range notes {
		paths[i] = n.Path
	}
	idx := resolver.NewIndex(paths)

	g := &models.Graph{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}}
	present := make(map[string]bool, len(notes))
	var edges edgeSet

	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		links, ok := b.links(n)
		if !ok {
			continue
		}
		present[n.Path] = true
		g.Nodes = append(g.Nodes, models.GraphNode{ID: n.Path, Label: n.Name})

		for _, target := range links.Wiki {
			if m, ok := idx.Resolve(target, models.LinkWiki); ok {
				edges.add(n.Path, m.Path, models.LinkWiki)
			}
		}
		for _, target := range links.Markdown {
			if m, ok := idx.Resolve(target, models.LinkMarkdown); ok {
				edges.add(n.Path, m.Path, models.LinkMarkdown)
			}
		}
	}

	// Targets that vanished mid-scan have no node; drop their edges.
	for _, e := range edges.list {
		if present[e.Target] {
			g.Edges = append(g.Edges, *e)
		}
	}
	return g, nil
}

func (b *Builder) links(n models.NoteInfo) (models.Links, bool) {
	if b.cache != nil {
		if c, ok := b.cache.Get(n.Path); ok && c.modified.Equal(n.Modified) && c.size == n.Size {
			return c.links, true
		}
	}
	data, err := b.src.Read(n.Path)
	if err != nil {
		b.logger.Debug("graph: skipping unreadable note",
			slog.String("path", n.Path),
			slog.String("error", err.Error()),
		)
		b.Invalidate(n.Path)
		return models.Links{}, false
	}
	links := parser.ExtractLinks(string(data))
	if b.cache != nil {
		b.cache.Add(n.Path, cached{modified: n.Modified, size: n.Size, links: links})
	}
	return links, true
}

// edgeSet keeps one edge per directed (source, target) pair. The first kind
// seen becomes Kind; later kinds are only appended to Kinds.
type edgeSet struct {
	byKey map[[2]string]*models.GraphEdge
	list  []*models.GraphEdge
}

func (s *edgeSet) add(source, target string, kind models.LinkKind) {
	if source == target {
		return
	}
	if s.byKey == nil {
		s.byKey = make(map[[2]string]*models.GraphEdge)
	}
	key := [2]string{source, target}
	if e, ok := s.byKey[key]; ok {
		for _, k := range e.Kinds {
			if k == kind {
				return
			}
		}
		e.Kinds = append(e.Kinds, kind)
		return
	}
	e := &models.GraphEdge{Source: source, Target: target, Kind: kind, Kinds: []models.LinkKind{kind}}
	s.byKey[key] = e
	s.list = append(s.list, e)
}
