package domain

import (
	"strings"
	"time"
)

// Folder is a named grouping of bookmarks inside one namespace.
// Names are unique per namespace.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeFolderName trims the name and rejects empty ones.
func NormalizeFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidInput
	}
	return name, nil
}

// FolderContents is a folder together with all of its bookmarks.
type FolderContents struct {
	Folder    Folder
	Bookmarks []*Bookmark
}
