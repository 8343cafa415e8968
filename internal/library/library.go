// Package library moves bookmarks between the active and archived namespaces
// and deletes them, each behind an explicit confirmation.
package library

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

// Store is the part of the document store the library needs.
type Store interface {
	MoveBookmark(ctx context.Context, from domain.Namespace, folderID, bookmarkID string, mutate func(*domain.Bookmark)) (*redisstore.MoveResult, error)
	DeleteBookmark(ctx context.Context, ns domain.Namespace, folderID, bookmarkID string) error
	Now() time.Time
}

// Service archives, restores and deletes bookmarks.
type Service struct {
	store Store
	log   logger.Logger
}

func New(store Store, log logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Archive moves an active bookmark into the same-named archive folder and
// stamps archivedAt.
func (s *Service) Archive(ctx context.Context, folderID, bookmarkID string, confirmed bool) (*redisstore.MoveResult, error) {
	if !confirmed {
		return nil, domain.ErrConfirmationRequired
	}
	now := s.store.Now().UTC()
	res, err := s.store.MoveBookmark(ctx, domain.Active, folderID, bookmarkID, func(b *domain.Bookmark) {
		b.ArchivedAt = &now
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("bookmark archived",
		logger.String("folder_id", res.Folder.ID),
		logger.String("bookmark_id", res.Bookmark.ID),
		logger.Bool("folder_created", res.FolderCreated))
	return res, nil
}

// Unarchive moves an archived bookmark back into the same-named active folder
// and clears archivedAt.
func (s *Service) Unarchive(ctx context.Context, folderID, bookmarkID string, confirmed bool) (*redisstore.MoveResult, error) {
	if !confirmed {
		return nil, domain.ErrConfirmationRequired
	}
	res, err := s.store.MoveBookmark(ctx, domain.Archived, folderID, bookmarkID, func(b *domain.Bookmark) {
		b.ArchivedAt = nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("bookmark restored",
		logger.String("folder_id", res.Folder.ID),
		logger.String("bookmark_id", res.Bookmark.ID),
		logger.Bool("folder_created", res.FolderCreated))
	return res, nil
}

// DeleteBookmark permanently removes a bookmark from either namespace.
func (s *Service) DeleteBookmark(ctx context.Context, ns domain.Namespace, folderID, bookmarkID string, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}
	if err := s.store.DeleteBookmark(ctx, ns, folderID, bookmarkID); err != nil {
		return err
	}
	s.log.Info("bookmark deleted",
		logger.String("namespace", string(ns)),
		logger.String("folder_id", folderID),
		logger.String("bookmark_id", bookmarkID))
	return nil
}

// Actions that need confirmation.
const (
	ActionArchive = "archive"
	ActionRestore = "restore"
	ActionDelete  = "delete"
)

// ConfirmPrompt is the question shown before a move or delete.
func ConfirmPrompt(ns domain.Namespace, action string) string {
	switch {
	case action == ActionDelete && ns == domain.Archived:
		return "Permanently delete this bookmark? This cannot be undone."
	case action == ActionDelete:
		return "Delete this bookmark?"
	case ns == domain.Archived:
		return "Restore this bookmark?"
	default:
		return "Archive this bookmark?"
	}
}
