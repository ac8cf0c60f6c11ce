package noteservice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
	"github.com/sudo-Harshk/NoteDiscovery/internal/attachments"
	"github.com/sudo-Harshk/NoteDiscovery/internal/graph"
	"github.com/sudo-Harshk/NoteDiscovery/internal/hooks"
	"github.com/sudo-Harshk/NoteDiscovery/internal/index"
	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
	"github.com/sudo-Harshk/NoteDiscovery/internal/sse"
	"github.com/sudo-Harshk/NoteDiscovery/internal/storage"
	"github.com/sudo-Harshk/NoteDiscovery/internal/testutil"
)

type recordedEvent struct {
	kind string
	data any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Notify(kind string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind, data})
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.kind
	}
	return out
}

func newTestService(t *testing.T, opts ...Option) (*Service, *storage.FS, *recordingPublisher) {
	t.Helper()
	root, store := testutil.TestStore(t)
	b, err := graph.NewBuilder(store, 64, testutil.QuietLogger())
	if err != nil {
		t.Fatal(err)
	}
	pub := &recordingPublisher{}
	base := []Option{WithPublisher(pub), WithLogger(testutil.QuietLogger())}
	svc := New(store, attachments.New(root, 1024), b, append(base, opts...)...)
	return svc, store, pub
}

func TestSaveNote_CreatedFlagAndHooks(t *testing.T) {
	header := hooks.Hook{
		Name: "header",
		OnCreate: func(_ context.Context, _, c string) (string, error) {
			return "# New\n" + c, nil
		},
	}
	p := hooks.New(testutil.QuietLogger(), header, hooks.TrailingNewline())
	svc, store, _ := newTestService(t, WithHooks(p))
	ctx := context.Background()

	res, err := svc.SaveNote(ctx, "daily/today", "body")
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	if !res.Created || res.Path != "daily/today.md" || res.Content != "# New\nbody\n" {
		t.Errorf("first save = %+v", res)
	}

	res, err = svc.SaveNote(ctx, "daily/today.md", "edited")
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.Content != "edited\n" {
		t.Errorf("second save = %+v", res)
	}
	data, _ := store.Read("daily/today.md")
	if string(data) != "edited\n" {
		t.Errorf("stored = %q", data)
	}
}

func TestSaveNote_HookFailureDoesNotWrite(t *testing.T) {
	boom := hooks.Hook{
		Name:   "reject",
		OnSave: func(context.Context, string, string) (string, error) { return "", errors.New("nope") },
	}
	svc, store, _ := newTestService(t, WithHooks(hooks.New(testutil.QuietLogger(), boom)))

	if _, err := svc.SaveNote(context.Background(), "x.md", "data"); err == nil {
		t.Fatal("expected hook error")
	}
	if ok, _ := store.Exists("x.md"); ok {
		t.Error("note written despite failing hook")
	}
}

func TestGetNote_DetailAndBacklinks(t *testing.T) {
	svc, store, _ := newTestService(t)
	testutil.WriteNotes(t, store, map[string]string{
		"Target.md":      "---\ntitle: The Target\ntags: [a]\n---\nbody #b",
		"one.md":         "see [[Target]]",
		"sub/two.md":     "see [t](../Target.md) and [x](Target.md)",
		"unrelated.md":   "nothing here",
		"sub/Target2.md": "[[Target]]",
	})

	d, err := svc.GetNote(context.Background(), "Target")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if d.Path != "Target.md" || d.Name != "Target" || d.Folder != "" || d.Title != "The Target" {
		t.Errorf("detail = %+v", d)
	}
	if len(d.Tags) != 2 || d.Checksum == "" {
		t.Errorf("tags/checksum = %v %q", d.Tags, d.Checksum)
	}
	want := []string{"one.md", "sub/Target2.md", "sub/two.md"}
	if strings.Join(d.Backlinks, ",") != strings.Join(want, ",") {
		t.Errorf("backlinks = %v, want %v", d.Backlinks, want)
	}
}

func TestGetNote_Missing(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.GetNote(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestGetNote_LoadHook(t *testing.T) {
	upper := hooks.Hook{
		Name:   "upper",
		OnLoad: func(_ context.Context, _, c string) (string, error) { return strings.ToUpper(c), nil },
	}
	svc, store, _ := newTestService(t, WithHooks(hooks.New(testutil.QuietLogger(), upper)))
	testutil.WriteNotes(t, store, map[string]string{"n.md": "quiet"})

	d, err := svc.GetNote(context.Background(), "n.md")
	if err != nil {
		t.Fatal(err)
	}
	if d.Content != "QUIET" {
		t.Errorf("content = %q", d.Content)
	}
}

func TestMoveNote_PublishesAndUpdatesGraph(t *testing.T) {
	svc, store, pub := newTestService(t)
	testutil.WriteNotes(t, store, map[string]string{
		"a.md": "[[b]]",
		"b.md": "b",
	})
	ctx := context.Background()
	if _, err := svc.Graph(ctx); err != nil {
		t.Fatal(err)
	}

	to, err := svc.MoveNote(ctx, "b", "archive/b")
	if err != nil {
		t.Fatalf("MoveNote: %v", err)
	}
	if to != "archive/b.md" {
		t.Errorf("to = %q", to)
	}
	if k := pub.kinds(); len(k) != 1 || k[0] != sse.NoteMoved {
		t.Errorf("events = %v", k)
	}

	// [[b]] still resolves by name after the move.
	g, err := svc.Graph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Edges) != 1 || g.Edges[0].Target != "archive/b.md" {
		t.Errorf("edges = %+v", g.Edges)
	}
}

func TestMoveNote_Conflict(t *testing.T) {
	svc, store, pub := newTestService(t)
	testutil.WriteNotes(t, store, map[string]string{"a.md": "a", "b.md": "b"})
	if _, err := svc.MoveNote(context.Background(), "a.md", "b.md"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v", err)
	}
	if len(pub.kinds()) != 0 {
		t.Error("failed move published an event")
	}
}

func TestDeleteNote_RunsDeleteHook(t *testing.T) {
	var deleted []string
	h := hooks.Hook{Name: "track", OnDelete: func(_ context.Context, p string) { deleted = append(deleted, p) }}
	svc, store, _ := newTestService(t, WithHooks(hooks.New(testutil.QuietLogger(), h)))
	testutil.WriteNotes(t, store, map[string]string{"gone.md": "x"})

	if err := svc.DeleteNote(context.Background(), "gone"); err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 1 || deleted[0] != "gone.md" {
		t.Errorf("delete hook saw %v", deleted)
	}
	if err := svc.DeleteNote(context.Background(), "gone"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestFolderOperations(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	testutil.WriteNotes(t, store, map[string]string{"proj/x.md": "[[y]]", "proj/y.md": "y"})

	if err := svc.CreateFolder(ctx, "empty/inner"); err != nil {
		t.Fatal(err)
	}
	if err := svc.MoveFolder(ctx, "proj", "work/proj"); err != nil {
		t.Fatal(err)
	}
	if err := svc.RenameFolder(ctx, "work/proj", "work/project"); err != nil {
		t.Fatal(err)
	}
	g, err := svc.Graph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Edges) != 1 || g.Edges[0].Source != "work/project/x.md" {
		t.Errorf("edges after rename = %+v", g.Edges)
	}
	if err := svc.DeleteFolder(ctx, "work"); err != nil {
		t.Fatal(err)
	}

	folders, err := svc.ListFolders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(folders, ",") != "empty,empty/inner" {
		t.Errorf("folders = %v", folders)
	}
	want := []string{sse.FolderCreated, sse.FolderMoved, sse.FolderMoved, sse.FolderDeleted}
	if strings.Join(pub.kinds(), ",") != strings.Join(want, ",") {
		t.Errorf("events = %v", pub.kinds())
	}
	if err := svc.DeleteFolder(ctx, ""); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("delete root err = %v", err)
	}
}

func TestListItems_IncludesImages(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	testutil.WriteNotes(t, store, map[string]string{"docs/a.md": "a"})

	rel, err := svc.UploadImage(ctx, "docs/a.md", "shot.png", []byte("png"))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(rel, "docs/_attachments/shot-") {
		t.Errorf("rel = %q", rel)
	}
	if _, err := svc.ImagePath(rel); err != nil {
		t.Errorf("ImagePath: %v", err)
	}

	l, err := svc.ListItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var notes, images int
	for _, it := range l.Notes {
		switch it.Kind {
		case models.KindNote:
			notes++
		case models.KindImage:
			images++
		}
	}
	if notes != 1 || images != 1 {
		t.Errorf("items = %+v", l.Notes)
	}
	if len(l.Folders) != 2 {
		t.Errorf("folders = %v", l.Folders)
	}
}

func TestUploadImage_TooLarge(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.UploadImage(context.Background(), "a.md", "big.png", make([]byte, 2048))
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestSearch(t *testing.T) {
	svc, store, _ := newTestService(t)
	testutil.WriteNotes(t, store, map[string]string{"a.md": "line one\nNeedle here\nline three"})

	res, err := svc.Search(context.Background(), "needle")
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Path != "a.md" {
		t.Errorf("results = %+v", res)
	}

	off, _, _ := newTestService(t, WithSearch(false))
	if _, err := off.Search(context.Background(), "needle"); !errors.Is(err, apperr.ErrDisabled) {
		t.Errorf("disabled err = %v", err)
	}
}

func TestBacklinks_FromIndex(t *testing.T) {
	root, store := testutil.TestStore(t)
	b, err := graph.NewBuilder(store, 16, testutil.QuietLogger())
	if err != nil {
		t.Fatal(err)
	}
	db := testutil.TestDB(t)
	syncer := index.NewSyncer(db, store, b, time.Hour, testutil.QuietLogger())
	defer syncer.Stop()
	svc := New(store, attachments.New(root, 0), b, WithIndex(db, syncer), WithLogger(testutil.QuietLogger()))
	ctx := context.Background()

	testutil.WriteNotes(t, store, map[string]string{"hub.md": "# Hub"})
	if _, err := syncer.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveNote(ctx, "spoke.md", "[[hub]]"); err != nil {
		t.Fatal(err)
	}

	bl, err := svc.Backlinks(ctx, "hub")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0] != "spoke.md" {
		t.Errorf("backlinks = %v", bl)
	}
	meta, err := svc.NoteMeta("hub")
	if err != nil || meta.Title != "Hub" {
		t.Errorf("meta = %+v, %v", meta, err)
	}
}

func TestSaveNote_ConcurrentSamePath(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	created := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.SaveNote(ctx, "race.md", "same content")
			if err != nil {
				t.Error(err)
				return
			}
			created <- res.Created
		}()
	}
	wg.Wait()
	close(created)

	n := 0
	for c := range created {
		if c {
			n++
		}
	}
	if n != 1 {
		t.Errorf("%d saves reported created, want 1", n)
	}
	data, _ := store.Read("race.md")
	if string(data) != "same content" {
		t.Errorf("stored = %q", data)
	}
}
