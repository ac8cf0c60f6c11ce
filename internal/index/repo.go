package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
)

// NoteRow is one row of the notes table.
type NoteRow struct {
	Path     string
	Title    string
	Checksum string
	Tags     []string
	Size     int64
	Modified time.Time
}

// UpsertNote inserts or replaces the metadata of a note.
func (db *DB) UpsertNote(n NoteRow) error {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("index: encode tags: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO notes (path, title, checksum, tags, size, modified_ns)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			checksum    = excluded.checksum,
			tags        = excluded.tags,
			size        = excluded.size,
			modified_ns = excluded.modified_ns
	`, n.Path, n.Title, n.Checksum, string(tagsJSON), n.Size, n.Modified.UnixNano())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	return nil
}

// DeleteNote removes a note and its outgoing links.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetNote returns the cached metadata of path or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT path, title, checksum, tags, size, modified_ns FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// AllNotes returns every cached note keyed by path.
func (db *DB) AllNotes() (map[string]NoteRow, error) {
	rows, err := db.conn.Query(`SELECT path, title, checksum, tags, size, modified_ns FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all notes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]NoteRow)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan note: %w", err)
		}
		out[n.Path] = *n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var (
		n        NoteRow
		tagsJSON string
		modNS    int64
	)
	if err := s.Scan(&n.Path, &n.Title, &n.Checksum, &tagsJSON, &n.Size, &modNS); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	n.Modified = time.Unix(0, modNS)
	return &n, nil
}

// ReplaceLinks swaps the whole links table for edges in one transaction.
func (db *DB) ReplaceLinks(edges []models.GraphEdge) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links`); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(edges) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, kind) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range edges {
			if _, err := stmt.Exec(e.Source, e.Target, string(e.Kind)); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Backlinks returns the notes linking to target, sorted by path.
func (db *DB) Backlinks(target string) ([]string, error) {
	return db.column(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
}

// Outlinks returns the notes source links to, sorted by path.
func (db *DB) Outlinks(source string) ([]string, error) {
	return db.column(`SELECT target FROM links WHERE source = ? ORDER BY target`, source)
}

func (db *DB) column(query, arg string) ([]string, error) {
	rows, err := db.conn.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("index: query links: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
