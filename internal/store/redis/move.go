package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// MoveResult describes where a moved bookmark landed.
type MoveResult struct {
	Folder        *domain.Folder   `json:"folder"`
	Bookmark      *domain.Bookmark `json:"bookmark"`
	FolderCreated bool             `json:"folderCreated"`
}

// MoveBookmark moves a bookmark into the same-named folder of the other namespace,
// creating that folder when it does not exist. mutate may adjust the copy before it
// is written. The read, copy and delete run as one transaction.
func (s *Store) MoveBookmark(ctx context.Context, from domain.Namespace, folderID, bookmarkID string, mutate func(*domain.Bookmark)) (*MoveResult, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNamespace(from); err != nil {
		return nil, err
	}
	to := from.Other()

	srcLink := LinkKey(uid, from, folderID, bookmarkID)
	srcFolder := FolderKey(uid, from, folderID)
	dstNames := FolderNamesKey(uid, to)

	var result *MoveResult
	err = s.watch(ctx, func(tx *redis.Tx) error {
		var bm domain.Bookmark
		if err := getJSON(ctx, tx, srcLink, &bm); err != nil {
			return fmt.Errorf("bookmark %s: %w", bookmarkID, err)
		}
		var folder domain.Folder
		if err := getJSON(ctx, tx, srcFolder, &folder); err != nil {
			return fmt.Errorf("folder %s: %w", folderID, err)
		}

		res := &MoveResult{}
		dstID, err := tx.HGet(ctx, dstNames, folder.Name).Result()
		switch {
		case errors.Is(err, redis.Nil):
			res.Folder = &domain.Folder{ID: s.newID(), Name: folder.Name, CreatedAt: folder.CreatedAt}
			res.FolderCreated = true
		case err != nil:
			return fmt.Errorf("failed to look up destination folder: %w", err)
		default:
			res.Folder = &domain.Folder{}
			if err := getJSON(ctx, tx, FolderKey(uid, to, dstID), res.Folder); err != nil {
				return fmt.Errorf("destination folder %s: %w", dstID, err)
			}
		}

		moved := bm
		moved.ID = s.newID()
		if mutate != nil {
			mutate(&moved)
		}
		res.Bookmark = &moved

		linkData, err := mustJSON(&moved)
		if err != nil {
			return err
		}
		var folderData []byte
		if res.FolderCreated {
			if folderData, err = mustJSON(res.Folder); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			dst := res.Folder
			if res.FolderCreated {
				pipe.Set(ctx, FolderKey(uid, to, dst.ID), folderData, 0)
				pipe.ZAdd(ctx, FoldersKey(uid, to), redis.Z{Score: score(dst.CreatedAt), Member: dst.ID})
				pipe.HSet(ctx, dstNames, dst.Name, dst.ID)
			}
			pipe.Set(ctx, LinkKey(uid, to, dst.ID, moved.ID), linkData, 0)
			pipe.ZAdd(ctx, LinksKey(uid, to, dst.ID), redis.Z{Score: score(moved.CreatedAt), Member: moved.ID})
			pipe.Del(ctx, srcLink)
			pipe.ZRem(ctx, LinksKey(uid, from, folderID), bookmarkID)
			return nil
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	}, srcLink, srcFolder, dstNames)
	if err != nil {
		return nil, err
	}
	return result, nil
}
