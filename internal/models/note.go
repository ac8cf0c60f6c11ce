// Package models defines the domain types for NoteDiscovery.
package models

import "time"

// NoteExt is the canonical document extension.
const NoteExt = ".md"

// ItemKind distinguishes notes from attachments in listings.
type ItemKind string

const (
	KindNote  ItemKind = "note"
	KindImage ItemKind = "image"
)

// NoteInfo describes one enumerated file in the storage root.
type NoteInfo struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Folder   string    `json:"folder"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
	Kind     ItemKind  `json:"type"`
}

// Links holds the raw reference targets found in a note, in document order.
type Links struct {
	Wiki     []string `json:"wiki"`
	Markdown []string `json:"markdown"`
}

// LinkKind tags the syntax a graph edge was discovered through.
type LinkKind string

const (
	LinkWiki     LinkKind = "wikilink"
	LinkMarkdown LinkKind = "markdown"
)

// GraphNode is one note in the reference graph.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// GraphEdge is a resolved reference between two notes.
// Kind is the first kind discovered for the pair; Kinds lists every kind seen.
type GraphEdge struct {
	Source string     `json:"source"`
	Target string     `json:"target"`
	Kind   LinkKind   `json:"kind"`
	Kinds  []LinkKind `json:"kinds"`
}

// Graph is the full node/edge set derived from a storage root.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
