// Package view builds the page models of the main bookmark screen: the folder
// strip, the bookmark list of the selected folder and the preview modal.
package view

import (
	"context"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/library"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

// Store is the part of the document store the view needs.
type Store interface {
	GetPrefs(ctx context.Context) (redisstore.Prefs, error)
	SetLastFolder(ctx context.Context, ns domain.Namespace, folderID string) error
	SetArchiveMode(ctx context.Context, on bool) error
	ListFolders(ctx context.Context, ns domain.Namespace) ([]*domain.Folder, error)
	CreateFolder(ctx context.Context, ns domain.Namespace, name string) (*domain.Folder, error)
	ListBookmarks(ctx context.Context, ns domain.Namespace, folderID string) ([]*domain.Bookmark, error)
	GetBookmark(ctx context.Context, ns domain.Namespace, folderID, bookmarkID string) (*domain.Bookmark, error)
}

// State is what the screen is currently showing.
type State struct {
	User            *domain.User
	ArchiveMode     bool
	CurrentFolderID string
}

// Namespace is the namespace the state is browsing.
func (s State) Namespace() domain.Namespace {
	if s.ArchiveMode {
		return domain.Archived
	}
	return domain.Active
}

// UserInfo is the signed-in badge.
type UserInfo struct {
	Handle   string `json:"handle"`
	PhotoURL string `json:"photoURL,omitempty"`
}

type FolderItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// Action is a button on a bookmark row. Confirm is the question to ask first.
type Action struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Confirm string `json:"confirm,omitempty"`
}

// Row is one bookmark of the list.
type Row struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon"`
	Fallback    string   `json:"fallbackIcon"`
	Actions     []Action `json:"actions"`
}

// Page is the full model of the main screen.
type Page struct {
	SignedIn         bool         `json:"signedIn"`
	User             *UserInfo    `json:"user,omitempty"`
	Mode             string       `json:"mode"`
	Heading          string       `json:"heading"`
	Folders          []FolderItem `json:"folders"`
	SelectedFolderID string       `json:"selectedFolderId,omitempty"`
	Title            string       `json:"title"`
	Bookmarks        []Row        `json:"bookmarks"`
	FoldersEmpty     string       `json:"foldersEmpty,omitempty"`
	BookmarksEmpty   string       `json:"bookmarksEmpty,omitempty"`
}

// Modal is the bookmark preview.
type Modal struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	URL         string        `json:"url"`
	Embed       *domain.Embed `json:"embed,omitempty"`
	NoPreview   string        `json:"noPreview,omitempty"`
}

// Controller derives pages from the store and the persisted preferences.
// It holds no per-user state of its own.
type Controller struct {
	store Store
	log   logger.Logger
}

func NewController(store Store, log logger.Logger) *Controller {
	return &Controller{store: store, log: log}
}

// State reads the current state of the signed-in user.
func (c *Controller) State(ctx context.Context) (State, error) {
	u, ok := domain.UserFromContext(ctx)
	if !ok {
		return State{}, nil
	}
	prefs, err := c.store.GetPrefs(ctx)
	if err != nil {
		return State{}, err
	}
	st := State{User: u, ArchiveMode: prefs.ArchiveMode}
	st.CurrentFolderID = prefs.LastFolder(st.Namespace())
	return st, nil
}

// Load builds the page. The selected folder is selectID when it exists, else
// the last opened folder of the mode, else the first folder. The choice is
// remembered as the last opened folder.
func (c *Controller) Load(ctx context.Context, selectID string) (*Page, error) {
	st, err := c.State(ctx)
	if err != nil {
		return nil, err
	}
	if st.User == nil {
		return signedOutPage(), nil
	}

	ns := st.Namespace()
	page := newPage(st)
	if selectID == "" {
		selectID = st.CurrentFolderID
	}

	folders, err := c.store.ListFolders(ctx, ns)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		page.FoldersEmpty = emptyFolders(st.ArchiveMode)
		page.BookmarksEmpty = "Create a folder first"
		return page, nil
	}

	selected := folders[0]
	for _, f := range folders {
		if f.ID == selectID {
			selected = f
			break
		}
	}
	for _, f := range folders {
		page.Folders = append(page.Folders, FolderItem{ID: f.ID, Name: folderLabel(f.Name), Selected: f.ID == selected.ID})
	}
	page.SelectedFolderID = selected.ID
	page.Title = folderLabel(selected.Name)

	if selected.ID != st.CurrentFolderID {
		if err := c.store.SetLastFolder(ctx, ns, selected.ID); err != nil {
			c.log.Warn("failed to remember last folder", logger.Error(err))
		}
	}

	bookmarks, err := c.store.ListBookmarks(ctx, ns, selected.ID)
	if err != nil {
		return nil, err
	}
	if len(bookmarks) == 0 {
		page.BookmarksEmpty = emptyBookmarks(st.ArchiveMode)
		return page, nil
	}
	for _, b := range bookmarks {
		page.Bookmarks = append(page.Bookmarks, row(b, ns))
	}
	return page, nil
}

// ToggleArchiveMode flips between the active and archived namespaces.
func (c *Controller) ToggleArchiveMode(ctx context.Context) (*Page, error) {
	st, err := c.State(ctx)
	if err != nil {
		return nil, err
	}
	if st.User == nil {
		return nil, domain.ErrUnauthenticated
	}
	if err := c.store.SetArchiveMode(ctx, !st.ArchiveMode); err != nil {
		return nil, err
	}
	return c.Load(ctx, "")
}

// SelectFolder opens a folder of the current mode.
func (c *Controller) SelectFolder(ctx context.Context, folderID string) (*Page, error) {
	if _, err := domain.RequireUser(ctx); err != nil {
		return nil, err
	}
	return c.Load(ctx, folderID)
}

// CreateFolder adds a folder to the current mode and opens it.
func (c *Controller) CreateFolder(ctx context.Context, name string) (*Page, error) {
	st, err := c.State(ctx)
	if err != nil {
		return nil, err
	}
	if st.User == nil {
		return nil, domain.ErrUnauthenticated
	}
	f, err := c.store.CreateFolder(ctx, st.Namespace(), name)
	if err != nil {
		return nil, err
	}
	return c.Load(ctx, f.ID)
}

// Preview builds the modal of one bookmark.
func (c *Controller) Preview(ctx context.Context, ns domain.Namespace, folderID, bookmarkID string) (*Modal, error) {
	b, err := c.store.GetBookmark(ctx, ns, folderID, bookmarkID)
	if err != nil {
		return nil, err
	}
	m := &Modal{
		Title:       b.Title,
		Description: b.Description,
		URL:         b.URL,
		Embed:       domain.EmbedFor(b.URL),
	}
	if m.Title == "" {
		m.Title = "No Title"
	}
	if m.Description == "" {
		m.Description = "No description"
	}
	if m.Embed == nil {
		m.NoPreview = "Preview not available"
	}
	return m, nil
}

func signedOutPage() *Page {
	return &Page{
		Mode:           string(domain.Active),
		Heading:        "Folders",
		Folders:        []FolderItem{},
		Bookmarks:      []Row{},
		FoldersEmpty:   "Sign in to view folders",
		BookmarksEmpty: "Sign in to view bookmarks",
	}
}

func newPage(st State) *Page {
	p := &Page{
		SignedIn:  true,
		User:      &UserInfo{Handle: st.User.Handle(), PhotoURL: st.User.PhotoURL},
		Mode:      string(st.Namespace()),
		Heading:   "Folders",
		Folders:   []FolderItem{},
		Bookmarks: []Row{},
	}
	if st.ArchiveMode {
		p.Heading = "Archive Folders"
	}
	return p
}

func folderLabel(name string) string {
	if name == "" {
		return "Unnamed"
	}
	return name
}

func emptyFolders(archive bool) string {
	if archive {
		return "No archived folders"
	}
	return "No folders"
}

func emptyBookmarks(archive bool) string {
	if archive {
		return "No archived bookmarks in this folder yet"
	}
	return "No bookmarks in this folder yet"
}

func row(b *domain.Bookmark, ns domain.Namespace) Row {
	fallback := domain.FaviconFallback(b.URL)
	r := Row{
		ID:          b.ID,
		URL:         b.URL,
		Title:       b.Title,
		Description: b.Description,
		Icon:        b.Thumbnail,
		Fallback:    fallback,
	}
	if r.Title == "" {
		r.Title = b.URL
	}
	if r.Icon == "" {
		r.Icon = fallback
	}
	if ns == domain.Archived {
		r.Actions = []Action{
			{Name: "delete", Label: "Delete permanently", Confirm: library.ConfirmPrompt(ns, "delete")},
			{Name: "unarchive", Label: "Restore", Confirm: library.ConfirmPrompt(ns, "unarchive")},
			{Name: "preview", Label: "Open"},
		}
	} else {
		r.Actions = []Action{
			{Name: "delete", Label: "Delete", Confirm: library.ConfirmPrompt(ns, "delete")},
			{Name: "archive", Label: "Archive", Confirm: library.ConfirmPrompt(ns, "archive")},
			{Name: "preview", Label: "Open"},
		}
	}
	return r
}
