package share

import (
	"context"
	"strings"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

// Store is the part of the document store the share flow needs. Bookmarks are
// always saved to the active namespace.
type Store interface {
	ListFolders(ctx context.Context, ns domain.Namespace) ([]*domain.Folder, error)
	CreateFolder(ctx context.Context, ns domain.Namespace, name string) (*domain.Folder, error)
	CreateBookmark(ctx context.Context, ns domain.Namespace, folderID string, in domain.BookmarkInput) (*domain.Bookmark, error)
}

// Prefill is the share form as first shown.
type Prefill struct {
	URL              string           `json:"url"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Image            string           `json:"image,omitempty"`
	SignedIn         bool             `json:"signedIn"`
	Folders          []*domain.Folder `json:"folders"`
	SelectedFolderID string           `json:"selectedFolderId,omitempty"`
	Empty            string           `json:"empty,omitempty"`
}

// SaveRequest is the submitted share form.
type SaveRequest struct {
	FolderID    string `json:"folderId"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// FolderList is the folder picker after a change.
type FolderList struct {
	Folders          []*domain.Folder `json:"folders"`
	SelectedFolderID string           `json:"selectedFolderId,omitempty"`
}

type Service struct {
	store Store
	meta  MetaFetcher
	log   logger.Logger
}

func NewService(store Store, meta MetaFetcher, log logger.Logger) *Service {
	return &Service{store: store, meta: meta, log: log}
}

// Prefill builds the share form. An explicit title is never replaced by the
// scraped one. Signed-out users get the form without folders.
func (s *Service) Prefill(ctx context.Context, in Shared) (*Prefill, error) {
	p := &Prefill{URL: in.URL, Title: in.Title, Folders: []*domain.Folder{}}

	var meta Meta
	if in.URL != "" {
		meta = s.meta.Fetch(ctx, in.URL)
		if strings.TrimSpace(p.Title) == "" {
			p.Title = meta.Title
		}
	}
	p.Description = in.Text
	if p.Description == "" {
		p.Description = meta.Description
	}
	p.Image = meta.Image

	if _, ok := domain.UserFromContext(ctx); !ok {
		p.Empty = "Sign in to select a folder"
		return p, nil
	}
	p.SignedIn = true

	list, err := s.folderList(ctx, "")
	if err != nil {
		return nil, err
	}
	p.Folders = list.Folders
	p.SelectedFolderID = list.SelectedFolderID
	if len(p.Folders) == 0 {
		p.Empty = "No folders"
	}
	return p, nil
}

// Save stores the shared page as a bookmark. Missing title and description are
// filled from the page metadata; the title finally falls back to the URL.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*domain.Bookmark, error) {
	if _, err := domain.RequireUser(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FolderID) == "" {
		return nil, domain.ErrFolderRequired
	}

	url := strings.TrimSpace(req.URL)
	title := strings.TrimSpace(req.Title)
	desc := strings.TrimSpace(req.Description)

	meta := s.meta.Fetch(ctx, url)
	if title == "" {
		title = meta.Title
	}
	if title == "" {
		title = url
	}
	if desc == "" {
		desc = meta.Description
	}

	b, err := s.store.CreateBookmark(ctx, domain.Active, req.FolderID, domain.BookmarkInput{
		URL:         url,
		Title:       title,
		Description: desc,
		Thumbnail:   meta.Image,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("shared bookmark saved",
		logger.String("folder_id", req.FolderID),
		logger.String("bookmark_id", b.ID))
	return b, nil
}

// CreateFolder adds an active folder and selects it.
func (s *Service) CreateFolder(ctx context.Context, name string) (*FolderList, error) {
	f, err := s.store.CreateFolder(ctx, domain.Active, name)
	if err != nil {
		return nil, err
	}
	return s.folderList(ctx, f.ID)
}

// folderList selects selectID when present, otherwise the most recent folder.
func (s *Service) folderList(ctx context.Context, selectID string) (*FolderList, error) {
	folders, err := s.store.ListFolders(ctx, domain.Active)
	if err != nil {
		return nil, err
	}
	list := &FolderList{Folders: folders}
	for _, f := range folders {
		if f.ID == selectID {
			list.SelectedFolderID = f.ID
		}
	}
	if list.SelectedFolderID == "" && len(folders) > 0 {
		list.SelectedFolderID = folders[len(folders)-1].ID
	}
	return list, nil
}
