package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// ListBookmarks returns the bookmarks of a folder, most recent first.
func (s *Store) ListBookmarks(ctx context.Context, ns domain.Namespace, folderID string) ([]*domain.Bookmark, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	return s.listBookmarks(ctx, s.client, uid, ns, folderID)
}

func (s *Store) listBookmarks(ctx context.Context, c reader, uid string, ns domain.Namespace, folderID string) ([]*domain.Bookmark, error) {
	ids, err := c.ZRevRange(ctx, LinksKey(uid, ns, folderID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}

	bookmarks := make([]*domain.Bookmark, 0, len(ids))
	for _, id := range ids {
		var b domain.Bookmark
		if err := getJSON(ctx, c, LinkKey(uid, ns, folderID, id), &b); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		bookmarks = append(bookmarks, &b)
	}
	return bookmarks, nil
}

// GetBookmark returns one bookmark.
func (s *Store) GetBookmark(ctx context.Context, ns domain.Namespace, folderID, bookmarkID string) (*domain.Bookmark, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	var b domain.Bookmark
	if err := getJSON(ctx, s.client, LinkKey(uid, ns, folderID, bookmarkID), &b); err != nil {
		return nil, fmt.Errorf("bookmark %s: %w", bookmarkID, err)
	}
	return &b, nil
}

// CreateBookmark stores a new bookmark in an existing folder.
func (s *Store) CreateBookmark(ctx context.Context, ns domain.Namespace, folderID string, in domain.BookmarkInput) (*domain.Bookmark, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}

	now := s.now().UTC()
	b := &domain.Bookmark{
		ID:          s.newID(),
		URL:         in.URL,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Thumbnail:   strings.TrimSpace(in.Thumbnail),
		CreatedAt:   now,
	}
	if ns == domain.Archived {
		b.ArchivedAt = &now
	}
	data, err := mustJSON(b)
	if err != nil {
		return nil, err
	}

	folderKey := FolderKey(uid, ns, folderID)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, folderKey).Result()
		if err != nil {
			return fmt.Errorf("failed to check folder: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, LinkKey(uid, ns, folderID, b.ID), data, 0)
			pipe.ZAdd(ctx, LinksKey(uid, ns, folderID), redis.Z{Score: score(b.CreatedAt), Member: b.ID})
			return nil
		})
		return err
	}, folderKey)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBookmark removes a bookmark from its folder.
func (s *Store) DeleteBookmark(ctx context.Context, ns domain.Namespace, folderID, bookmarkID string) error {
	uid, err := uidFrom(ctx)
	if err != nil {
		return err
	}
	if err := checkNamespace(ns); err != nil {
		return err
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, LinkKey(uid, ns, folderID, bookmarkID))
		pipe.ZRem(ctx, LinksKey(uid, ns, folderID), bookmarkID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if deleted.Val() == 0 {
		return fmt.Errorf("bookmark %s: %w", bookmarkID, domain.ErrNotFound)
	}
	return nil
}
