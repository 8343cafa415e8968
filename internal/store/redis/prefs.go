package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// Preference fields, named after the browser storage keys they replace.
const (
	PrefLastFolder        = "last_folder_id"
	PrefLastArchiveFolder = "last_archive_folder_id"
	PrefArchiveMode       = "archive_mode"
)

// Prefs is the persisted view state of a user.
type Prefs struct {
	LastFolderID        string
	LastArchiveFolderID string
	ArchiveMode         bool
}

// LastFolder returns the last opened folder for a namespace.
func (p Prefs) LastFolder(ns domain.Namespace) string {
	if ns == domain.Archived {
		return p.LastArchiveFolderID
	}
	return p.LastFolderID
}

// GetPrefs loads the view preferences of the signed-in user.
func (s *Store) GetPrefs(ctx context.Context) (Prefs, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return Prefs{}, err
	}
	vals, err := s.client.HGetAll(ctx, PrefsKey(uid)).Result()
	if err != nil {
		return Prefs{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	archive, _ := strconv.ParseBool(vals[PrefArchiveMode])
	return Prefs{
		LastFolderID:        vals[PrefLastFolder],
		LastArchiveFolderID: vals[PrefLastArchiveFolder],
		ArchiveMode:         archive,
	}, nil
}

// SetLastFolder remembers the last opened folder, separately per namespace.
func (s *Store) SetLastFolder(ctx context.Context, ns domain.Namespace, folderID string) error {
	if folderID == "" {
		return nil
	}
	uid, err := uidFrom(ctx)
	if err != nil {
		return err
	}
	field := PrefLastFolder
	if ns == domain.Archived {
		field = PrefLastArchiveFolder
	}
	if err := s.client.HSet(ctx, PrefsKey(uid), field, folderID).Err(); err != nil {
		return fmt.Errorf("failed to save last folder: %w", err)
	}
	return nil
}

// SetArchiveMode persists the archive-mode toggle.
func (s *Store) SetArchiveMode(ctx context.Context, on bool) error {
	uid, err := uidFrom(ctx)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, PrefsKey(uid), PrefArchiveMode, strconv.FormatBool(on)).Err(); err != nil {
		return fmt.Errorf("failed to save archive mode: %w", err)
	}
	return nil
}
