package backup

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

// UntitledFolder names restored folders whose name is blank.
const UntitledFolder = "Untitled"

// Store is the part of the document store backup needs.
type Store interface {
	Snapshot(ctx context.Context, ns domain.Namespace) ([]domain.FolderContents, error)
	ReplaceAll(ctx context.Context, contents map[domain.Namespace][]domain.FolderContents) error
	Now() time.Time
}

// Progress reports done out of total folders processed. It may be nil.
type Progress func(done, total int)

// Stats summarises an import.
type Stats struct {
	Folders   int `json:"folders"`
	Archives  int `json:"archives"`
	Bookmarks int `json:"bookmarks"`
	Merged    int `json:"merged"`
}

type Service struct {
	store Store
	log   logger.Logger
	newID func() string
}

func New(store Store, log logger.Logger) *Service {
	return &Service{store: store, log: log, newID: uuid.NewString}
}

// Export snapshots both namespaces into a backup document.
func (s *Service) Export(ctx context.Context, progress Progress) (*Document, error) {
	active, err := s.store.Snapshot(ctx, domain.Active)
	if err != nil {
		return nil, err
	}
	archived, err := s.store.Snapshot(ctx, domain.Archived)
	if err != nil {
		return nil, err
	}

	total := len(active) + len(archived)
	done := 0
	step := func() {
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	doc := &Document{
		Folders:   make([]Folder, 0, len(active)),
		Archives:  make([]Folder, 0, len(archived)),
		Version:   Version,
		Timestamp: formatTime(s.store.Now()),
	}
	for _, fc := range active {
		doc.Folders = append(doc.Folders, exportFolder(fc, false))
		step()
	}
	for _, fc := range archived {
		doc.Archives = append(doc.Archives, exportFolder(fc, true))
		step()
	}
	return doc, nil
}

func exportFolder(fc domain.FolderContents, archived bool) Folder {
	f := Folder{
		ID:        fc.Folder.ID,
		Name:      fc.Folder.Name,
		CreatedAt: formatTime(fc.Folder.CreatedAt),
		Bookmarks: make([]Bookmark, 0, len(fc.Bookmarks)),
	}
	for _, b := range fc.Bookmarks {
		out := Bookmark{
			ID:          b.ID,
			URL:         b.URL,
			Title:       b.Title,
			Description: b.Description,
			Thumbnail:   b.Thumbnail,
			CreatedAt:   formatTime(b.CreatedAt),
		}
		if archived {
			at := b.CreatedAt
			if b.ArchivedAt != nil {
				at = *b.ArchivedAt
			}
			out.ArchivedAt = formatTime(at)
		}
		f.Bookmarks = append(f.Bookmarks, out)
	}
	return f
}

// Import replaces all of the user's data with doc. Nothing is deleted unless
// confirmed is true.
func (s *Service) Import(ctx context.Context, doc *Document, confirmed bool, progress Progress) (*Stats, error) {
	if !confirmed {
		return nil, domain.ErrConfirmationRequired
	}
	if doc == nil || doc.Folders == nil {
		return nil, domain.ErrMalformedBackup
	}
	if _, err := domain.RequireUser(ctx); err != nil {
		return nil, err
	}

	now := s.store.Now().UTC()
	total := len(doc.Folders) + len(doc.Archives)
	done := 0
	step := func() {
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	stats := &Stats{}
	active, merged := s.importFolders(doc.Folders, false, now, stats, step)
	stats.Merged += merged
	archived, merged := s.importFolders(doc.Archives, true, now, stats, step)
	stats.Merged += merged
	stats.Folders = len(active)
	stats.Archives = len(archived)

	err := s.store.ReplaceAll(ctx, map[domain.Namespace][]domain.FolderContents{
		domain.Active:   active,
		domain.Archived: archived,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("backup restored",
		logger.Int("folders", stats.Folders),
		logger.Int("archives", stats.Archives),
		logger.Int("bookmarks", stats.Bookmarks),
		logger.Int("merged_folders", stats.Merged))
	return stats, nil
}

// importFolders regenerates ids and merges folders sharing a name into the first
// one, keeping names unique within the namespace.
func (s *Service) importFolders(in []Folder, archived bool, now time.Time, stats *Stats, step func()) ([]domain.FolderContents, int) {
	out := make([]domain.FolderContents, 0, len(in))
	byName := make(map[string]int, len(in))
	merged := 0

	for _, f := range in {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			name = UntitledFolder
		}

		idx, seen := byName[name]
		if !seen {
			out = append(out, domain.FolderContents{Folder: domain.Folder{
				ID:        s.newID(),
				Name:      name,
				CreatedAt: parseTime(f.CreatedAt, now),
			}})
			idx = len(out) - 1
			byName[name] = idx
		} else {
			merged++
		}

		for _, b := range f.Bookmarks {
			created := parseTime(b.CreatedAt, now)
			bm := &domain.Bookmark{
				ID:          s.newID(),
				URL:         b.URL,
				Title:       b.Title,
				Description: b.Description,
				Thumbnail:   b.Thumbnail,
				CreatedAt:   created,
			}
			if archived {
				at := parseTime(b.ArchivedAt, created)
				bm.ArchivedAt = &at
			}
			out[idx].Bookmarks = append(out[idx].Bookmarks, bm)
			stats.Bookmarks++
		}
		step()
	}
	return out, merged
}
