package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"notes", "links"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAndGetNote(t *testing.T) {
	db := testDB(t)
	mod := time.Unix(1700000000, 123456789)
	row := NoteRow{Path: "hello.md", Title: "Hello", Checksum: "abc", Tags: []string{"go"}, Size: 42, Modified: mod}
	if err := db.UpsertNote(row); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	got, err := db.GetNote("hello.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Hello" || got.Checksum != "abc" || got.Size != 42 || !got.Modified.Equal(mod) {
		t.Errorf("row = %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "go" {
		t.Errorf("tags = %v", got.Tags)
	}

	row.Title = "Changed"
	row.Tags = nil
	_ = db.UpsertNote(row)
	got, _ = db.GetNote("hello.md")
	if got.Title != "Changed" || got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("after update = %+v", got)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetNote("missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceLinksAndBacklinks(t *testing.T) {
	db := testDB(t)
	edges := []models.GraphEdge{
		{Source: "c.md", Target: "b.md", Kind: models.LinkWiki},
		{Source: "a.md", Target: "b.md", Kind: models.LinkMarkdown},
		{Source: "a.md", Target: "c.md", Kind: models.LinkWiki},
	}
	if err := db.ReplaceLinks(edges); err != nil {
		t.Fatalf("ReplaceLinks: %v", err)
	}
	bl, err := db.Backlinks("b.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 || bl[0] != "a.md" || bl[1] != "c.md" {
		t.Errorf("backlinks = %v", bl)
	}
	out, _ := db.Outlinks("a.md")
	if len(out) != 2 || out[0] != "b.md" || out[1] != "c.md" {
		t.Errorf("outlinks = %v", out)
	}

	if err := db.ReplaceLinks(nil); err != nil {
		t.Fatal(err)
	}
	bl, _ = db.Backlinks("b.md")
	if bl == nil || len(bl) != 0 {
		t.Errorf("backlinks after clear = %#v", bl)
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "del.md"})
	_ = db.ReplaceLinks([]models.GraphEdge{{Source: "del.md", Target: "t.md", Kind: models.LinkWiki}})

	if err := db.DeleteNote("del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := db.GetNote("del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note still present: %v", err)
	}
	bl, _ := db.Backlinks("t.md")
	if len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %v", bl)
	}
}

func TestAllNotes(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md"})
	_ = db.UpsertNote(NoteRow{Path: "b.md"})
	all, err := db.AllNotes()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all = %v", all)
	}
}

func TestPing(t *testing.T) {
	db := testDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
