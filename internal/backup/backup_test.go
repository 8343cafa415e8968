package backup

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

var fixedNow = time.Date(2024, 8, 15, 10, 30, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *redisstore.Store, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tick := 0
	store := redisstore.NewStore(client, redisstore.WithClock(func() time.Time {
		tick++
		return fixedNow.Add(time.Duration(tick) * time.Millisecond)
	}))
	ctx := domain.WithUser(context.Background(), &domain.User{UID: "u1"})
	return New(store, logger.Nop()), store, ctx
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", `{"version":"2.0","folders":[],"archives":[]}`, false},
		{"no archives", `{"folders":[{"name":"a","bookmarks":[]}]}`, false},
		{"null archives", `{"folders":[],"archives":null}`, false},
		{"not json", `{"folders":`, true},
		{"array top level", `[]`, true},
		{"missing folders", `{"archives":[]}`, true},
		{"folders not array", `{"folders":{}}`, true},
		{"archives not array", `{"folders":[],"archives":"x"}`, true},
		{"wrong field type", `{"folders":[{"name":5}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrMalformedBackup) {
					t.Errorf("Parse() = %v, want ErrMalformedBackup", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Parse() = %v", err)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(fixedNow); got != "bookmark-backup-2024-08-15.json" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, store, ctx := setup(t)

	reading, _ := store.CreateFolder(ctx, domain.Active, "Reading")
	_, _ = store.CreateBookmark(ctx, domain.Active, reading.ID, domain.BookmarkInput{URL: "https://example.com", Title: "Example"})
	_, _ = store.CreateBookmark(ctx, domain.Active, reading.ID, domain.BookmarkInput{URL: "https://go.dev", Title: "Go", Description: "lang"})
	old, _ := store.CreateFolder(ctx, domain.Archived, "Old")
	_, _ = store.CreateBookmark(ctx, domain.Archived, old.ID, domain.BookmarkInput{URL: "https://archive.org"})

	var calls int
	doc, err := svc.Export(ctx, func(done, total int) {
		calls++
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
	})
	if err != nil {
		t.Fatalf("Export() = %v", err)
	}
	if calls != 2 || doc.Version != Version {
		t.Errorf("calls = %d, version = %q", calls, doc.Version)
	}
	if doc.Archives[0].Bookmarks[0].ArchivedAt == "" {
		t.Error("archived bookmarks must carry archivedAt")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := svc.Import(ctx, parsed, true, nil)
	if err != nil {
		t.Fatalf("Import() = %v", err)
	}
	if stats.Folders != 1 || stats.Archives != 1 || stats.Bookmarks != 3 {
		t.Errorf("stats = %+v", stats)
	}

	again, err := svc.Export(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summarize(again.Folders) != summarize(doc.Folders) || summarize(again.Archives) != summarize(doc.Archives) {
		t.Errorf("round trip changed contents:\n%s\n%s", summarize(doc.Folders), summarize(again.Folders))
	}
	if again.Folders[0].ID == doc.Folders[0].ID {
		t.Error("ids should be regenerated")
	}
}

// summarize flattens folders into comparable text, ignoring ids.
func summarize(folders []Folder) string {
	var lines []string
	for _, f := range folders {
		lines = append(lines, f.Name+"@"+f.CreatedAt)
		for _, b := range f.Bookmarks {
			lines = append(lines, f.Name+"|"+b.URL+"|"+b.Title+"|"+b.Description+"|"+b.CreatedAt+"|"+b.ArchivedAt)
		}
	}
	sort.Strings(lines)
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}

func TestImportRequiresConfirmation(t *testing.T) {
	svc, store, ctx := setup(t)
	_, _ = store.CreateFolder(ctx, domain.Active, "Keep")

	doc := &Document{Folders: []Folder{}}
	if _, err := svc.Import(ctx, doc, false, nil); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Errorf("got %v", err)
	}
	folders, _ := store.ListFolders(ctx, domain.Active)
	if len(folders) != 1 {
		t.Error("nothing should be deleted without confirmation")
	}
}

func TestMalformedImportDeletesNothing(t *testing.T) {
	svc, store, ctx := setup(t)
	_, _ = store.CreateFolder(ctx, domain.Active, "Keep")

	if _, err := Parse([]byte(`{"archives":[]}`)); !errors.Is(err, domain.ErrMalformedBackup) {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := svc.Import(ctx, &Document{}, true, nil); !errors.Is(err, domain.ErrMalformedBackup) {
		t.Errorf("Import(nil folders) = %v", err)
	}
	folders, _ := store.ListFolders(ctx, domain.Active)
	if len(folders) != 1 {
		t.Error("malformed import must not delete anything")
	}
}

func TestImportLenientFields(t *testing.T) {
	svc, store, ctx := setup(t)

	doc := &Document{
		Folders: []Folder{
			{Name: "Dup", CreatedAt: "2020-01-01T00:00:00Z", Bookmarks: []Bookmark{{URL: "https://a", CreatedAt: "garbage"}}},
			{Name: " Dup ", Bookmarks: []Bookmark{{URL: "https://b"}}},
			{Name: "", Bookmarks: nil},
		},
		Archives: []Folder{
			{Name: "Arch", Bookmarks: []Bookmark{{URL: "https://c", CreatedAt: "2021-05-05T05:05:05.123Z"}}},
		},
	}
	stats, err := svc.Import(ctx, doc, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Merged != 1 || stats.Folders != 2 {
		t.Errorf("stats = %+v", stats)
	}

	folders, _ := store.ListFolders(ctx, domain.Active)
	if len(folders) != 2 || folders[0].Name != "Dup" || folders[1].Name != UntitledFolder {
		t.Fatalf("folders = %+v", folders)
	}
	bms, _ := store.ListBookmarks(ctx, domain.Active, folders[0].ID)
	if len(bms) != 2 {
		t.Errorf("merged folder should hold 2 bookmarks, got %d", len(bms))
	}

	arch, _ := store.Snapshot(ctx, domain.Archived)
	b := arch[0].Bookmarks[0]
	if b.ArchivedAt == nil || !b.ArchivedAt.Equal(b.CreatedAt) {
		t.Errorf("archivedAt should default to createdAt, got %v", b.ArchivedAt)
	}
}
