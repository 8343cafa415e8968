package domain

import (
	"net/url"
	"time"
)

// Bookmark is a saved link owned by exactly one folder.
type Bookmark struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is generated on creation and regenerated on restore.
	ID string `json:"id"`

	// URL is the saved link.
	URL string `json:"url"`

	// ─────────────────────────────
	// Display metadata
	// ─────────────────────────────

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Thumbnail is an image URL, usually scraped from og:image.
	Thumbnail string `json:"thumbnail,omitempty"`

	// ─────────────────────────────
	// Lifecycle
	// ─────────────────────────────

	CreatedAt time.Time `json:"createdAt"`

	// ArchivedAt is set only while the bookmark lives in the archived namespace.
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// BookmarkInput carries the user-supplied fields of a new bookmark.
type BookmarkInput struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
}

// IsArchived reports whether the bookmark carries an archive timestamp.
func (b *Bookmark) IsArchived() bool {
	return b.ArchivedAt != nil && !b.ArchivedAt.IsZero()
}

// FaviconFallback is used as a row icon when a bookmark has no thumbnail.
func FaviconFallback(rawURL string) string {
	return "https://www.google.com/s2/favicons?sz=64&domain_url=" + url.QueryEscape(rawURL)
}
