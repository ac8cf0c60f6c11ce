package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func mustWrite(t *testing.T, s *FS, path, content string) {
	t.Helper()
	if err := s.Write(path, []byte(content)); err != nil {
		t.Fatalf("Write(%s): %v", path, err)
	}
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteAppendsExtension(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "plain", "x")
	if _, err := os.Stat(filepath.Join(s.Root(), "plain.md")); err != nil {
		t.Fatalf("expected plain.md on disk: %v", err)
	}
	ok, err := s.Exists("plain.md")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "a/b/c.md", "deep")
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestReadMissing(t *testing.T) {
	s := tempVault(t)
	if _, err := s.Read("nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteKeepsEmptyFolder(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "dir/del.md", "bye")
	if err := s.Delete("dir/del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("dir/del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("read after delete err = %v", err)
	}
	folders, err := s.ListFolders()
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 1 || folders[0] != "dir" {
		t.Errorf("folders = %v, want [dir]", folders)
	}
	if err := s.Delete("dir/del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMove(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "old.md", "data")
	if err := s.Move("old.md", "sub/new.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.md")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if ok, _ := s.Exists("old.md"); ok {
		t.Error("old path should not exist")
	}
}

func TestMove_FailureLeavesBothSides(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "a.md", "A")
	mustWrite(t, s, "b.md", "B")

	if err := s.Move("a.md", "b.md"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if err := s.Move("missing.md", "c.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.Move("a.md", "../escape.md"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath", err)
	}

	for path, want := range map[string]string{"a.md": "A", "b.md": "B"} {
		got, err := s.Read(path)
		if err != nil || string(got) != want {
			t.Errorf("%s = %q, %v; want %q", path, got, err, want)
		}
	}
	if ok, _ := s.Exists("c.md"); ok {
		t.Error("c.md should not exist")
	}
}

func TestListNotes(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "a.md", "a")
	mustWrite(t, s, "sub/b.md", "bb")
	mustWrite(t, s, ".hidden/c.md", "hidden")
	if err := os.WriteFile(filepath.Join(s.Root(), "readme.txt"), []byte("not md"), 0o644); err != nil {
		t.Fatal(err)
	}

	older := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(s.Root(), "a.md"), older, older); err != nil {
		t.Fatal(err)
	}

	items, err := s.ListNotes()
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	if items[0].Path != "sub/b.md" || items[1].Path != "a.md" {
		t.Errorf("order = %s, %s; want newest first", items[0].Path, items[1].Path)
	}
	b := items[0]
	if b.Name != "b" || b.Folder != "sub" || b.Size != 2 || b.Kind != "note" {
		t.Errorf("unexpected info: %+v", b)
	}
	if items[1].Folder != "" {
		t.Errorf("root note folder = %q, want empty", items[1].Folder)
	}
}

func TestListFolders_IncludesEmpty(t *testing.T) {
	s := tempVault(t)
	for _, p := range []string{"b", "a/x", ".git"} {
		if err := os.MkdirAll(filepath.Join(s.Root(), filepath.FromSlash(p)), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	folders, err := s.ListFolders()
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	want := []string{"a", "a/x", "b"}
	if len(folders) != len(want) {
		t.Fatalf("folders = %v, want %v", folders, want)
	}
	for i := range want {
		if folders[i] != want[i] {
			t.Errorf("folders[%d] = %q, want %q", i, folders[i], want[i])
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)
	outside := filepath.Join(filepath.Dir(s.Root()), "outside.md")

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"a/../../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("Read(%q) err = %v", p, err)
		}
		if err := s.Write(p, []byte("x")); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("Write(%q) err = %v", p, err)
		}
		if err := s.Delete(p); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("Delete(%q) err = %v", p, err)
		}
		if err := s.CreateFolder(p); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("CreateFolder(%q) err = %v", p, err)
		}
		if err := s.DeleteFolder(p); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("DeleteFolder(%q) err = %v", p, err)
		}
	}
	if _, err := os.Stat(outside); err == nil {
		t.Error("a write escaped the storage root")
	}
}

func TestMoveTraversalBlocked(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "a/keep.md", "keep")
	mustWrite(t, s, "note.md", "note")

	// A real directory next to the root, so an unguarded move would succeed.
	outDir := filepath.Join(filepath.Dir(s.Root()), "outdir")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "x.md"), []byte("outside"), 0o644); err != nil {
		t.Fatal(err)
	}

	folderMoves := []struct{ from, to string }{
		{"a", "../out"},
		{"a", "../../out"},
		{"a", "/tmp/out"},
		{"../outdir", "b"},
		{"a/../../outdir", "b"},
	}
	for _, m := range folderMoves {
		if err := s.MoveFolder(m.from, m.to); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("MoveFolder(%q, %q) err = %v", m.from, m.to, err)
		}
		if err := s.RenameFolder(m.from, m.to); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("RenameFolder(%q, %q) err = %v", m.from, m.to, err)
		}
	}

	noteMoves := []struct{ from, to string }{
		{"note.md", "../note.md"},
		{"../outdir/x.md", "x.md"},
		{"a/../../outdir/x.md", "x.md"},
	}
	for _, m := range noteMoves {
		if err := s.Move(m.from, m.to); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("Move(%q, %q) err = %v", m.from, m.to, err)
		}
	}

	for _, p := range []string{"a/keep.md", "note.md"} {
		if _, err := s.Read(p); err != nil {
			t.Errorf("%s changed: %v", p, err)
		}
	}
	if data, err := os.ReadFile(filepath.Join(outDir, "x.md")); err != nil || string(data) != "outside" {
		t.Errorf("outside file changed: %q, %v", data, err)
	}
	for _, p := range []string{"b", "x.md"} {
		if _, err := os.Stat(filepath.Join(s.Root(), p)); err == nil {
			t.Errorf("%s appeared inside the root", p)
		}
	}
	parent := filepath.Dir(s.Root())
	for _, p := range []string{"out", "note.md"} {
		if _, err := os.Stat(filepath.Join(parent, p)); err == nil {
			t.Errorf("%s appeared outside the root", p)
		}
	}
}

func TestFolderOps_RootRejected(t *testing.T) {
	s := tempVault(t)
	for _, p := range []string{"", ".", "a/.."} {
		if err := s.DeleteFolder(p); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("DeleteFolder(%q) err = %v", p, err)
		}
		if err := s.CreateFolder(p); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("CreateFolder(%q) err = %v", p, err)
		}
	}
	if _, err := os.Stat(s.Root()); err != nil {
		t.Fatalf("root removed: %v", err)
	}
}

func TestCreateFolder_FileInTheWay(t *testing.T) {
	s := tempVault(t)
	if err := os.WriteFile(filepath.Join(s.Root(), "plain"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateFolder("plain"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("CreateFolder over a file err = %v", err)
	}
}

func TestCreateFolder_Idempotent(t *testing.T) {
	s := tempVault(t)
	for i := 0; i < 2; i++ {
		if err := s.CreateFolder("x/y"); err != nil {
			t.Fatalf("CreateFolder #%d: %v", i, err)
		}
	}
	info, err := os.Stat(filepath.Join(s.Root(), "x", "y"))
	if err != nil || !info.IsDir() {
		t.Errorf("x/y not a directory: %v", err)
	}
}

func TestMoveFolder(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "src/n.md", "n")
	mustWrite(t, s, "src/deep/m.md", "m")

	if err := s.MoveFolder("src", "dst/inner"); err != nil {
		t.Fatalf("MoveFolder: %v", err)
	}
	for _, p := range []string{"dst/inner/n.md", "dst/inner/deep/m.md"} {
		if ok, _ := s.Exists(p); !ok {
			t.Errorf("%s missing after move", p)
		}
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "src")); !os.IsNotExist(err) {
		t.Errorf("src still present: %v", err)
	}
}

func TestMoveFolder_ConflictLeavesTreesUntouched(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "a/one.md", "1")
	mustWrite(t, s, "b/two.md", "2")

	if err := s.MoveFolder("a", "b"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if err := s.RenameFolder("a", "b"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("rename err = %v, want ErrConflict", err)
	}
	for _, p := range []string{"a/one.md", "b/two.md"} {
		if ok, _ := s.Exists(p); !ok {
			t.Errorf("%s missing", p)
		}
	}
	if ok, _ := s.Exists("b/one.md"); ok {
		t.Error("folders were merged")
	}
}

func TestMoveFolder_IntoItself(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "a/one.md", "1")
	if err := s.MoveFolder("a", "a/sub"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath", err)
	}
	if err := s.MoveFolder("missing", "z"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteFolder(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "trash/a.md", "a")
	mustWrite(t, s, "trash/sub/b.md", "b")
	if err := s.DeleteFolder("trash"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "trash")); !os.IsNotExist(err) {
		t.Errorf("trash still present: %v", err)
	}
	if err := s.DeleteFolder("trash"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "atomic.md", "original content")
	mustWrite(t, s, "atomic.md", "updated content")

	got, _ := s.Read("atomic.md")
	if string(got) != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "notes-test-*")
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
