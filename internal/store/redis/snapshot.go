package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
)

// Namespaces lists both namespaces in backup order.
var Namespaces = []domain.Namespace{domain.Active, domain.Archived}

// Snapshot returns every folder of a namespace with its bookmarks, folders oldest
// first and bookmarks newest first.
func (s *Store) Snapshot(ctx context.Context, ns domain.Namespace) ([]domain.FolderContents, error) {
	uid, err := uidFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}

	folders, err := s.listFolders(ctx, s.client, uid, ns)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FolderContents, 0, len(folders))
	for _, f := range folders {
		bookmarks, err := s.listBookmarks(ctx, s.client, uid, ns, f.ID)
		if err != nil {
			return nil, fmt.Errorf("folder %s: %w", f.ID, err)
		}
		out = append(out, domain.FolderContents{Folder: *f, Bookmarks: bookmarks})
	}
	return out, nil
}

// ReplaceAll deletes every folder and bookmark of both namespaces and writes the
// given contents in their place, in a single MULTI/EXEC. Folder and bookmark ids
// in contents are written as given.
func (s *Store) ReplaceAll(ctx context.Context, contents map[domain.Namespace][]domain.FolderContents) error {
	uid, err := uidFrom(ctx)
	if err != nil {
		return err
	}
	for ns := range contents {
		if err := checkNamespace(ns); err != nil {
			return err
		}
	}

	type write struct {
		key   string
		value []byte
	}
	type member struct {
		key    string
		score  float64
		member string
	}
	var (
		writes  []write
		members []member
		names   = make(map[string]map[string]any)
	)
	for ns, folders := range contents {
		nameKey := FolderNamesKey(uid, ns)
		names[nameKey] = make(map[string]any, len(folders))
		for _, fc := range folders {
			f := fc.Folder
			data, err := mustJSON(&f)
			if err != nil {
				return err
			}
			writes = append(writes, write{FolderKey(uid, ns, f.ID), data})
			members = append(members, member{FoldersKey(uid, ns), score(f.CreatedAt), f.ID})
			names[nameKey][f.Name] = f.ID

			for _, b := range fc.Bookmarks {
				data, err := mustJSON(b)
				if err != nil {
					return err
				}
				writes = append(writes, write{LinkKey(uid, ns, f.ID, b.ID), data})
				members = append(members, member{LinksKey(uid, ns, f.ID), score(b.CreatedAt), b.ID})
			}
		}
	}

	index := []string{FoldersKey(uid, domain.Active), FoldersKey(uid, domain.Archived)}
	return s.watch(ctx, func(tx *redis.Tx) error {
		stale, links, err := s.existingKeys(ctx, tx, uid)
		if err != nil {
			return err
		}
		// Per-folder link indexes are only known after listing. Watch them too
		// and list again, so a bookmark added meanwhile aborts the transaction.
		if len(links) > 0 {
			if err := tx.Watch(ctx, links...).Err(); err != nil {
				return err
			}
			if stale, _, err = s.existingKeys(ctx, tx, uid); err != nil {
				return err
			}
		}
		if s.replaceWatched != nil {
			s.replaceWatched()
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(stale) > 0 {
				pipe.Del(ctx, stale...)
			}
			for _, w := range writes {
				pipe.Set(ctx, w.key, w.value, 0)
			}
			for _, m := range members {
				pipe.ZAdd(ctx, m.key, redis.Z{Score: m.score, Member: m.member})
			}
			for key, fields := range names {
				if len(fields) > 0 {
					pipe.HSet(ctx, key, fields)
				}
			}
			return nil
		})
		return err
	}, index...)
}

// existingKeys lists every document and index key of both namespaces, and
// separately the per-folder link indexes among them.
func (s *Store) existingKeys(ctx context.Context, c reader, uid string) (keys, links []string, err error) {
	for _, ns := range Namespaces {
		keys = append(keys, FoldersKey(uid, ns), FolderNamesKey(uid, ns))
		folderIDs, err := c.ZRange(ctx, FoldersKey(uid, ns), 0, -1).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list folders: %w", err)
		}
		for _, fid := range folderIDs {
			keys = append(keys, FolderKey(uid, ns, fid), LinksKey(uid, ns, fid))
			links = append(links, LinksKey(uid, ns, fid))
			linkIDs, err := c.ZRange(ctx, LinksKey(uid, ns, fid), 0, -1).Result()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to list bookmarks: %w", err)
			}
			for _, id := range linkIDs {
				keys = append(keys, LinkKey(uid, ns, fid, id))
			}
		}
	}
	return keys, links, nil
}
