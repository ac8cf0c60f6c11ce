// Package search is a naive case-insensitive substring scan over every note.
package search

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
)

const (
	maxMatchesPerNote = 3
	maxContextRunes   = 200
)

// Source is the part of the note store a scan reads from.
type Source interface {
	ListNotes() ([]models.NoteInfo, error)
	Read(path string) ([]byte, error)
}

// Match is one matching line with a line of context either side.
type Match struct {
	LineNumber int    `json:"line_number"`
	Context    string `json:"context"`
}

// Result groups the matches found in one note.
type Result struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Matches []Match `json:"matches"`
}

// Scan returns every note whose content contains query, ignoring case, in
// listing order. Notes that cannot be read are skipped.
func Scan(ctx context.Context, src Source, query string) ([]Result, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalidInput)
	}
	notes, err := src.ListNotes()
	if err != nil {
		return nil, fmt.Errorf("search: list notes: %w", err)
	}

	out := []Result{}
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := src.Read(n.Path)
		if err != nil {
			continue
		}
		content := string(data)
		if !strings.Contains(strings.ToLower(content), needle) {
			continue
		}
		out = append(out, Result{Name: n.Name, Path: n.Path, Matches: matches(content, needle)})
	}
	return out, nil
}

func matches(content, needle string) []Match {
	lines := strings.Split(content, "\n")
	var out []Match
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		start, end := max(0, i-1), min(len(lines), i+2)
		out = append(out, Match{
			LineNumber: i + 1,
			Context:    truncate(strings.Join(lines[start:end], "\n"), maxContextRunes),
		})
		if len(out) == maxMatchesPerNote {
			break
		}
	}
	return out
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
