package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// ListFolders returns the folders of a namespace, oldest first.
func (s *Store) ListFolders(ctx context.Context, ns domain.Namespace) ([]*domain.Folder, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	return s.listFolders(ctx, s.client, uid, ns)
}

func (s *Store) listFolders(ctx context.Context, c reader, uid string, ns domain.Namespace) ([]*domain.Folder, error) {
	ids, err := c.ZRange(ctx, FoldersKey(uid, ns), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	folders := make([]*domain.Folder, 0, len(ids))
	for _, id := range ids {
		var f domain.Folder
		if err := getJSON(ctx, c, FolderKey(uid, ns, id), &f); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// index entry without document, skip it
				continue
			}
			return nil, err
		}
		folders = append(folders, &f)
	}
	return folders, nil
}

// GetFolder returns one folder by id.
func (s *Store) GetFolder(ctx context.Context, ns domain.Namespace, folderID string) (*domain.Folder, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	var f domain.Folder
	if err := getJSON(ctx, s.client, FolderKey(uid, ns, folderID), &f); err != nil {
		return nil, fmt.Errorf("folder %s: %w", folderID, err)
	}
	return &f, nil
}

// FindFolderByName looks a folder up by its exact name.
func (s *Store) FindFolderByName(ctx context.Context, ns domain.Namespace, name string) (*domain.Folder, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	id, err := s.client.HGet(ctx, FolderNamesKey(uid, ns), name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("folder %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up folder: %w", err)
	}
	return s.GetFolder(ctx, ns, id)
}

// CreateFolder adds a folder to a namespace. Names are unique per namespace.
func (s *Store) CreateFolder(ctx context.Context, ns domain.Namespace, name string) (*domain.Folder, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	name, err = domain.NormalizeFolderName(name)
	if err != nil {
		return nil, err
	}

	folder := &domain.Folder{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	data, err := mustJSON(folder)
	if err != nil {
		return nil, err
	}

	namesKey := FolderNamesKey(uid, ns)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, namesKey, name).Result()
		if err != nil {
			return fmt.Errorf("failed to check folder name: %w", err)
		}
		if exists {
			return fmt.Errorf("folder %q: %w", name, domain.ErrFolderExists)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, FolderKey(uid, ns, folder.ID), data, 0)
			pipe.ZAdd(ctx, FoldersKey(uid, ns), redis.Z{Score: score(folder.CreatedAt), Member: folder.ID})
			pipe.HSet(ctx, namesKey, name, folder.ID)
			return nil
		})
		return err
	}, namesKey)
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteFolder removes a folder and every bookmark it contains.
func (s *Store) DeleteFolder(ctx context.Context, ns domain.Namespace, folderID string) error {
	folder, err := s.GetFolder(ctx, ns, folderID)
	if err != nil {
		return err
	}
	uid, _ := uidFrom(ctx)

	linksKey := LinksKey(uid, ns, folderID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		ids, err := tx.ZRange(ctx, linksKey, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("failed to list folder links: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range ids {
				pipe.Del(ctx, LinkKey(uid, ns, folderID, id))
			}
			pipe.Del(ctx, linksKey, FolderKey(uid, ns, folderID))
			pipe.ZRem(ctx, FoldersKey(uid, ns), folderID)
			pipe.HDel(ctx, FolderNamesKey(uid, ns), folder.Name)
			return nil
		})
		return err
	}, linksKey, FolderNamesKey(uid, ns))
}
