package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// newTestStore returns a store over miniredis with a clock that advances one
// second per call and sequential ids.
func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	seq := 0
	s := NewStore(client,
		WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		}),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
	)
	return s, mr
}

func userCtx() context.Context {
	return domain.WithUser(context.Background(), &domain.User{UID: "u1", Email: "ada@example.com"})
}

func TestOperationsRequireUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"ListFolders", func() error { _, err := s.ListFolders(ctx, domain.Active); return err }},
		{"CreateFolder", func() error { _, err := s.CreateFolder(ctx, domain.Active, "x"); return err }},
		{"ListBookmarks", func() error { _, err := s.ListBookmarks(ctx, domain.Active, "f"); return err }},
		{"CreateBookmark", func() error {
			_, err := s.CreateBookmark(ctx, domain.Active, "f", domain.BookmarkInput{URL: "https://a"})
			return err
		}},
		{"DeleteBookmark", func() error { return s.DeleteBookmark(ctx, domain.Active, "f", "b") }},
		{"MoveBookmark", func() error { _, err := s.MoveBookmark(ctx, domain.Active, "f", "b", nil); return err }},
		{"Snapshot", func() error { _, err := s.Snapshot(ctx, domain.Active); return err }},
		{"ReplaceAll", func() error { return s.ReplaceAll(ctx, nil) }},
		{"GetPrefs", func() error { _, err := s.GetPrefs(ctx); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, domain.ErrUnauthenticated) {
				t.Errorf("got %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestFoldersOrderedOldestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := userCtx()

	for _, name := range []string{"Work", "Read later", "Music"} {
		if _, err := s.CreateFolder(ctx, domain.Active, name); err != nil {
			t.Fatalf("CreateFolder(%q) = %v", name, err)
		}
	}
	folders, err := s.ListFolders(ctx, domain.Active)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, f := range folders {
		got = append(got, f.Name)
	}
	want := []string{"Work", "Read later", "Music"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("folders = %v, want %v", got, want)
	}

	archived, err := s.ListFolders(ctx, domain.Archived)
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 0 {
		t.Errorf("archived namespace should be empty, got %d", len(archived))
	}
}

func TestCreateFolderRejectsDuplicatesAndBlank(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := userCtx()

	if _, err := s.CreateFolder(ctx, domain.Active, "Work"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateFolder(ctx, domain.Active, "  Work "); !errors.Is(err, domain.ErrFolderExists) {
		t.Errorf("duplicate name: got %v, want ErrFolderExists", err)
	}
	if _, err := s.CreateFolder(ctx, domain.Archived, "Work"); err != nil {
		t.Errorf("same name in the other namespace should be allowed: %v", err)
	}
	if _, err := s.CreateFolder(ctx, domain.Active, "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank name: got %v, want ErrInvalidInput", err)
	}

	f, err := s.FindFolderByName(ctx, domain.Active, "Work")
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "Work" {
		t.Errorf("FindFolderByName = %q", f.Name)
	}
}

func TestBookmarksNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := userCtx()

	f, err := s.CreateFolder(ctx, domain.Active, "Work")
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		if _, err := s.CreateBookmark(ctx, domain.Active, f.ID, domain.BookmarkInput{URL: u, Title: u}); err != nil {
			t.Fatal(err)
		}
	}
	bms, err := s.ListBookmarks(ctx, domain.Active, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(bms) != 3 || bms[0].URL != "https://c.example" || bms[2].URL != "https://a.example" {
		t.Errorf("unexpected order: %v, %v", bms[0].URL, bms[len(bms)-1].URL)
	}
	if bms[0].ArchivedAt != nil {
		t.Error("active bookmark should not carry archivedAt")
	}
}

func TestCreateBookmarkValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := userCtx()

	if _, err := s.CreateBookmark(ctx, domain.Active, "missing", domain.BookmarkInput{URL: "https://a"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown folder: got %v, want ErrNotFound", err)
	}
	f, _ := s.CreateFolder(ctx, domain.Active, "Work")
	if _, err := s.CreateBookmark(ctx, domain.Active, f.ID, domain.BookmarkInput{URL: " "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty url: got %v, want ErrInvalidInput", err)
	}
}

func TestDeleteBookmark(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := userCtx()

	f, _ := s.CreateFolder(ctx, domain.Active, "Work")
	b, err := s.CreateBookmark(ctx, domain.Active, f.ID, domain.BookmarkInput{URL: "https://a"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteBookmark(ctx, domain.Active, f.ID, b.ID); err != nil {
		t.Fatalf("DeleteBookmark() = %v", err)
	}
	if err := s.DeleteBookmark(ctx, domain.Active, f.ID, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestDeleteFolderCascades(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := userCtx()

	f, _ := s.CreateFolder(ctx, domain.Active, "Work")
	b, _ := s.CreateBookmark(ctx, domain.Active, f.ID, domain.BookmarkInput{URL: "https://a"})
	if err := s.DeleteFolder(ctx, domain.Active, f.ID); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(LinkKey("u1", domain.Active, f.ID, b.ID)) {
		t.Error("bookmark document should be gone")
	}
	if _, err := s.CreateFolder(ctx, domain.Active, "Work"); err != nil {
		t.Errorf("name should be free again: %v", err)
	}
}

func TestMoveBookmarkCreatesDestinationFolder(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := userCtx()

	src, _ := s.CreateFolder(ctx, domain.Active, "Work")
	b, _ := s.CreateBookmark(ctx, domain.Active, src.ID, domain.BookmarkInput{URL: "https://a", Title: "A"})

	stamp := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	res, err := s.MoveBookmark(ctx, domain.Active, src.ID, b.ID, func(m *domain.Bookmark) {
		m.ArchivedAt = &stamp
	})
	if err != nil {
		t.Fatalf("MoveBookmark() = %v", err)
	}
	if !res.FolderCreated || res.Folder.Name != "Work" || !res.Folder.CreatedAt.Equal(src.CreatedAt) {
		t.Errorf("destination folder = %+v created=%v", res.Folder, res.FolderCreated)
	}
	if res.Bookmark.ID == b.ID {
		t.Error("moved bookmark should get a new id")
	}
	if mr.Exists(LinkKey("u1", domain.Active, src.ID, b.ID)) {
		t.Error("source bookmark should be deleted")
	}

	got, err := s.ListBookmarks(ctx, domain.Archived, res.Folder.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ArchivedAt == nil || !got[0].ArchivedAt.Equal(stamp) || got[0].Title != "A" {
		t.Errorf("archived bookmarks = %+v", got)
	}
}

func TestMoveBookmarkReusesExistingFolder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := userCtx()

	src, _ := s.CreateFolder(ctx, domain.Active, "Work")
	dst, _ := s.CreateFolder(ctx, domain.Archived, "Work")
	b, _ := s.CreateBookmark(ctx, domain.Active, src.ID, domain.BookmarkInput{URL: "https://a"})

	res, err := s.MoveBookmark(ctx, domain.Active, src.ID, b.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.FolderCreated || res.Folder.ID != dst.ID {
		t.Errorf("expected existing folder %s, got %+v", dst.ID, res.Folder)
	}
	folders, _ := s.ListFolders(ctx, domain.Archived)
	if len(folders) != 1 {
		t.Errorf("archived folders = %d, want 1", len(folders))
	}
}

func TestMoveBookmarkMissing(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := userCtx()

	src, _ := s.CreateFolder(ctx, domain.Active, "Work")
	if _, err := s.MoveBookmark(ctx, domain.Active, src.ID, "nope", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSnapshotAndReplaceAll(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := userCtx()

	old, _ := s.CreateFolder(ctx, domain.Active, "Old")
	oldLink, _ := s.CreateBookmark(ctx, domain.Active, old.ID, domain.BookmarkInput{URL: "https://old"})
	oldArchive, _ := s.CreateFolder(ctx, domain.Archived, "Gone")

	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	contents := map[domain.Namespace][]domain.FolderContents{
		domain.Active: {{
			Folder: domain.Folder{ID: "nf1", Name: "New", CreatedAt: created},
			Bookmarks: []*domain.Bookmark{
				{ID: "nb1", URL: "https://one", Title: "one", CreatedAt: created},
				{ID: "nb2", URL: "https://two", Title: "two", CreatedAt: created.Add(time.Hour)},
			},
		}},
		domain.Archived: {},
	}
	if err := s.ReplaceAll(ctx, contents); err != nil {
		t.Fatalf("ReplaceAll() = %v", err)
	}

	for _, key := range []string{
		FolderKey("u1", domain.Active, old.ID),
		LinkKey("u1", domain.Active, old.ID, oldLink.ID),
		FolderKey("u1", domain.Archived, oldArchive.ID),
		FolderNamesKey("u1", domain.Archived),
	} {
		if mr.Exists(key) {
			t.Errorf("%s should have been deleted", key)
		}
	}

	snap, err := s.Snapshot(ctx, domain.Active)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 || snap[0].Folder.Name != "New" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap[0].Bookmarks) != 2 || snap[0].Bookmarks[0].ID != "nb2" {
		t.Errorf("bookmarks should be newest first: %+v", snap[0].Bookmarks)
	}
	if _, err := s.CreateFolder(ctx, domain.Active, "New"); !errors.Is(err, domain.ErrFolderExists) {
		t.Errorf("restored names should be indexed, got %v", err)
	}
}

func TestReplaceAllRetriesOnConcurrentBookmark(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := userCtx()

	f, _ := s.CreateFolder(ctx, domain.Active, "Old")
	if _, err := s.CreateBookmark(ctx, domain.Active, f.ID, domain.BookmarkInput{URL: "https://old"}); err != nil {
		t.Fatal(err)
	}

	// another client adds a bookmark to the existing folder mid-replace
	var late *domain.Bookmark
	s.replaceWatched = func() {
		if late != nil {
			return
		}
		b, err := s.CreateBookmark(ctx, domain.Active, f.ID, domain.BookmarkInput{URL: "https://late"})
		if err != nil {
			t.Errorf("concurrent CreateBookmark() = %v", err)
			return
		}
		late = b
	}

	if err := s.ReplaceAll(ctx, map[domain.Namespace][]domain.FolderContents{domain.Active: {}}); err != nil {
		t.Fatalf("ReplaceAll() = %v", err)
	}
	if late == nil {
		t.Fatal("concurrent write did not run")
	}
	for _, key := range []string{
		LinkKey("u1", domain.Active, f.ID, late.ID),
		LinksKey("u1", domain.Active, f.ID),
		FolderKey("u1", domain.Active, f.ID),
	} {
		if mr.Exists(key) {
			t.Errorf("%s survived the replace", key)
		}
	}
}

func TestPrefs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := userCtx()

	p, err := s.GetPrefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p.ArchiveMode || p.LastFolderID != "" {
		t.Errorf("zero prefs expected, got %+v", p)
	}

	_ = s.SetLastFolder(ctx, domain.Active, "a1")
	_ = s.SetLastFolder(ctx, domain.Archived, "z9")
	_ = s.SetArchiveMode(ctx, true)

	p, err = s.GetPrefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p.LastFolder(domain.Active) != "a1" || p.LastFolder(domain.Archived) != "z9" || !p.ArchiveMode {
		t.Errorf("prefs = %+v", p)
	}
}

func TestSessions(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	user := &domain.User{UID: "u1", Email: "ada@example.com"}

	if err := s.SaveSession(ctx, &Session{Token: "tok", User: user}, time.Hour); err != nil {
		t.Fatal(err)
	}
	sess, err := s.GetSession(ctx, "tok")
	if err != nil || sess.User.UID != "u1" {
		t.Fatalf("GetSession() = %+v, %v", sess, err)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := s.GetSession(ctx, "tok"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expired session: got %v", err)
	}

	_ = s.SaveSession(ctx, &Session{Token: "tok2", User: user}, time.Hour)
	deleted, err := s.DeleteSession(ctx, "tok2")
	if err != nil || deleted == nil || deleted.User.UID != "u1" {
		t.Errorf("DeleteSession() = %+v, %v", deleted, err)
	}
	if deleted, _ := s.DeleteSession(ctx, "tok2"); deleted != nil {
		t.Error("second delete should return nil")
	}
}

func TestAuthStateIsSingleUse(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveAuthState(ctx, "st", AuthState{Mode: "popup", ReturnTo: "/"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	st, err := s.ConsumeAuthState(ctx, "st")
	if err != nil || st.Mode != "popup" {
		t.Fatalf("ConsumeAuthState() = %+v, %v", st, err)
	}
	if _, err := s.ConsumeAuthState(ctx, "st"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("reuse: got %v", err)
	}
}

func TestCacheStore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.OpenCache(ctx, "OpenBinder-cache-v1"); err != nil {
		t.Fatal(err)
	}
	e := &CacheEntry{URL: "/index.html", Status: 200, Body: []byte("<html>")}
	if err := s.PutCacheEntry(ctx, "OpenBinder-cache-v1", e); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetCacheEntry(ctx, "OpenBinder-cache-v1", "/index.html")
	if err != nil || got == nil || string(got.Body) != "<html>" {
		t.Fatalf("GetCacheEntry() = %+v, %v", got, err)
	}
	if miss, err := s.GetCacheEntry(ctx, "OpenBinder-cache-v1", "/nope"); err != nil || miss != nil {
		t.Errorf("miss = %+v, %v", miss, err)
	}
	if n, err := s.CacheLen(ctx, "OpenBinder-cache-v1"); err != nil || n != 1 {
		t.Errorf("CacheLen() = %d, %v, want 1", n, err)
	}

	if err := s.DeleteCache(ctx, "OpenBinder-cache-v1"); err != nil {
		t.Fatal(err)
	}
	names, _ := s.CacheNames(ctx)
	if len(names) != 0 {
		t.Errorf("caches = %v", names)
	}
}

func TestAuthEventsPubSub(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.SubscribeAuthEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PublishAuthEvent(ctx, AuthEvent{UID: "u1"}); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		if ev.UID != "u1" || ev.User != nil {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
