package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

var fixedNow = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *redisstore.Store, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisstore.NewStore(client, redisstore.WithClock(func() time.Time { return fixedNow }))
	ctx := domain.WithUser(context.Background(), &domain.User{UID: "u1"})
	return New(store, logger.Nop()), store, ctx
}

func TestConfirmationRequired(t *testing.T) {
	svc, _, ctx := setup(t)

	if _, err := svc.Archive(ctx, "f", "b", false); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Errorf("Archive: got %v", err)
	}
	if _, err := svc.Unarchive(ctx, "f", "b", false); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Errorf("Unarchive: got %v", err)
	}
	if err := svc.DeleteBookmark(ctx, domain.Active, "f", "b", false); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Errorf("DeleteBookmark: got %v", err)
	}
}

func TestArchiveThenUnarchive(t *testing.T) {
	svc, store, ctx := setup(t)

	folder, err := store.CreateFolder(ctx, domain.Active, "Reading")
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.CreateBookmark(ctx, domain.Active, folder.ID, domain.BookmarkInput{URL: "https://go.dev", Title: "Go"})
	if err != nil {
		t.Fatal(err)
	}

	archived, err := svc.Archive(ctx, folder.ID, b.ID, true)
	if err != nil {
		t.Fatalf("Archive() = %v", err)
	}
	if archived.Bookmark.ArchivedAt == nil || !archived.Bookmark.ArchivedAt.Equal(fixedNow) {
		t.Errorf("archivedAt = %v", archived.Bookmark.ArchivedAt)
	}
	if archived.Folder.Name != "Reading" {
		t.Errorf("archive folder = %q", archived.Folder.Name)
	}
	left, _ := store.ListBookmarks(ctx, domain.Active, folder.ID)
	if len(left) != 0 {
		t.Errorf("active folder still has %d bookmarks", len(left))
	}

	restored, err := svc.Unarchive(ctx, archived.Folder.ID, archived.Bookmark.ID, true)
	if err != nil {
		t.Fatalf("Unarchive() = %v", err)
	}
	if restored.FolderCreated || restored.Folder.ID != folder.ID {
		t.Errorf("should land back in %s, got %+v", folder.ID, restored.Folder)
	}
	if restored.Bookmark.ArchivedAt != nil {
		t.Error("archivedAt should be cleared")
	}
	if restored.Bookmark.Title != "Go" || restored.Bookmark.URL != "https://go.dev" {
		t.Errorf("fields lost: %+v", restored.Bookmark)
	}
}

func TestDeleteBookmark(t *testing.T) {
	svc, store, ctx := setup(t)

	folder, _ := store.CreateFolder(ctx, domain.Archived, "Old")
	b, _ := store.CreateBookmark(ctx, domain.Archived, folder.ID, domain.BookmarkInput{URL: "https://x"})
	if err := svc.DeleteBookmark(ctx, domain.Archived, folder.ID, b.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteBookmark(ctx, domain.Archived, folder.ID, b.ID, true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}
}

func TestConfirmPrompt(t *testing.T) {
	tests := []struct {
		ns     domain.Namespace
		action string
		want   string
	}{
		{domain.Active, "archive", "Archive this bookmark?"},
		{domain.Archived, "unarchive", "Restore this bookmark?"},
		{domain.Active, "delete", "Delete this bookmark?"},
		{domain.Archived, "delete", "Permanently delete this bookmark? This cannot be undone."},
	}
	for _, tt := range tests {
		if got := ConfirmPrompt(tt.ns, tt.action); got != tt.want {
			t.Errorf("ConfirmPrompt(%s, %s) = %q", tt.ns, tt.action, got)
		}
	}
}
